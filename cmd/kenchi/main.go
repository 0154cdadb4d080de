// Command kenchi fits outlier detectors on tabular or packet-capture data,
// scores samples, and renders anomaly-score and ROC charts.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/deltat99/kenchi/pkg/config"
	"github.com/deltat99/kenchi/pkg/detector"
	"github.com/deltat99/kenchi/pkg/detector/gaussian"
	"github.com/deltat99/kenchi/pkg/detector/iforest"
	"github.com/deltat99/kenchi/pkg/eval"
	kio "github.com/deltat99/kenchi/pkg/io"
	csvio "github.com/deltat99/kenchi/pkg/io/csv"
	"github.com/deltat99/kenchi/pkg/io/jsonl"
	"github.com/deltat99/kenchi/pkg/io/pcap"
	"github.com/deltat99/kenchi/pkg/metrics"
	"github.com/deltat99/kenchi/pkg/viz"
)

var (
	configFile    string
	inputPath     string
	inputFormat   string
	hasHeader     bool
	labelColumn   bool
	detectorName  string
	contamination float64
	seed          int64
	trees         int
	sampleSize    int
	quantile      float64
	fitOut        string
	detectOut     string
	rocOut        string
	modelPath     string
	plotPath      string
	preview       bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kenchi",
		Short: "outlier detection toolkit",
	}

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "fit a detector and save the model",
		RunE:  runFit,
	}
	addDataFlags(fitCmd)
	addDetectorFlags(fitCmd)
	fitCmd.Flags().StringVar(&fitOut, "out", "model.bin", "model output path")

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "score samples and classify outliers",
		RunE:  runDetect,
	}
	addDataFlags(detectCmd)
	addDetectorFlags(detectCmd)
	detectCmd.Flags().StringVar(&modelPath, "model", "", "saved model to load instead of fitting")
	detectCmd.Flags().StringVar(&detectOut, "out", "", "results output path (jsonl), stdout when empty")
	detectCmd.Flags().StringVar(&plotPath, "plot", "", "write an anomaly-score chart to this file")
	detectCmd.Flags().BoolVar(&preview, "preview", false, "render scores in the terminal")

	rocCmd := &cobra.Command{
		Use:   "roc",
		Short: "fit on labeled data and plot the ROC curve",
		RunE:  runROC,
	}
	addDataFlags(rocCmd)
	addDetectorFlags(rocCmd)
	rocCmd.Flags().StringVar(&rocOut, "out", "roc.png", "chart output path")

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "grid search detector parameters on labeled data",
		RunE:  runSearch,
	}
	addDataFlags(searchCmd)
	addDetectorFlags(searchCmd)

	rootCmd.AddCommand(fitCmd, detectCmd, rocCmd, searchCmd)
	return rootCmd
}

func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&inputPath, "input", "", "input file path")
	cmd.Flags().StringVar(&inputFormat, "format", "csv", "input format (csv or pcap)")
	cmd.Flags().BoolVar(&hasHeader, "header", true, "csv has a header row")
	cmd.Flags().BoolVar(&labelColumn, "labels", false, "csv last column holds labels")
}

func addDetectorFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&detectorName, "detector", "iforest", "detector (iforest or gaussian)")
	cmd.Flags().Float64Var(&contamination, "contamination", 0.1, "expected outlier proportion (iforest)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&trees, "trees", 100, "number of trees (iforest)")
	cmd.Flags().IntVar(&sampleSize, "sample-size", 256, "subsample size per tree (iforest)")
	cmd.Flags().Float64Var(&quantile, "quantile", 0.99, "threshold quantile (gaussian)")
}

// loadConfig folds flags over an optional config file; explicit flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("detector") || cfg.Detector == "" {
		cfg.Detector = detectorName
	}
	if cmd.Flags().Changed("contamination") {
		cfg.Contamination = contamination
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("trees") {
		cfg.IForest.Trees = trees
	}
	if cmd.Flags().Changed("sample-size") {
		cfg.IForest.SampleSize = sampleSize
	}
	if cmd.Flags().Changed("quantile") {
		cfg.Gaussian.Quantile = quantile
	}
	if inputPath != "" {
		cfg.Input.Path = inputPath
	}
	if cmd.Flags().Changed("format") || cfg.Input.Format == "" {
		cfg.Input.Format = inputFormat
	}
	if cmd.Flags().Changed("header") {
		cfg.Input.Header = hasHeader
	}
	if cmd.Flags().Changed("labels") {
		cfg.Input.LabelColumn = labelColumn
	}

	if cfg.Input.Path == "" {
		return nil, fmt.Errorf("no input file given")
	}
	return cfg, cfg.Validate()
}

func buildDetector(cfg *config.Config) detector.Detector {
	switch cfg.Detector {
	case "gaussian":
		return gaussian.New(gaussian.WithQuantile(cfg.Gaussian.Quantile))
	default:
		return iforest.New(
			iforest.WithTrees(cfg.IForest.Trees),
			iforest.WithSampleSize(cfg.IForest.SampleSize),
			iforest.WithContamination(cfg.Contamination),
			iforest.WithSeed(cfg.Seed),
		)
	}
}

func openReader(cfg *config.Config) (kio.Reader, error) {
	switch cfg.Input.Format {
	case "pcap":
		return pcap.NewFileReader(cfg.Input.Path)
	default:
		return csvio.NewReader(cfg.Input.Path,
			csvio.WithHeader(cfg.Input.Header),
			csvio.WithLabelColumn(cfg.Input.LabelColumn))
	}
}

func readLabeled(cfg *config.Config) ([][]float64, []int, error) {
	if cfg.Input.Format != "csv" {
		return nil, nil, fmt.Errorf("labeled data requires csv input")
	}
	cfg.Input.LabelColumn = true

	r, err := csvio.NewReader(cfg.Input.Path,
		csvio.WithHeader(cfg.Input.Header),
		csvio.WithLabelColumn(true))
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	return r.ReadXY()
}

func runFit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Detector != "iforest" {
		return fmt.Errorf("model saving is only supported for iforest")
	}

	r, err := openReader(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	X, err := r.Read()
	if err != nil {
		return err
	}

	forest := buildDetector(cfg).(*iforest.Forest)
	if err := forest.Fit(X); err != nil {
		return err
	}

	data, err := forest.Save()
	if err != nil {
		return err
	}
	if err := os.WriteFile(fitOut, data, 0644); err != nil {
		return err
	}

	threshold, _ := forest.Threshold()
	fmt.Printf("fitted on %d samples, threshold %.4f, model written to %s\n",
		len(X), threshold, fitOut)
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	r, err := openReader(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	X, err := r.Read()
	if err != nil {
		return err
	}

	var d detector.Detector
	if modelPath != "" {
		forest := iforest.New()
		data, err := os.ReadFile(modelPath)
		if err != nil {
			return err
		}
		if err := forest.Load(data); err != nil {
			return err
		}
		d = forest
	} else {
		d = buildDetector(cfg)
		if err := d.Fit(X); err != nil {
			return err
		}
	}

	scores, err := d.AnomalyScore(X)
	if err != nil {
		return err
	}
	labels, err := detector.Predict(d, X)
	if err != nil {
		return err
	}

	writer := jsonl.NewWriter(os.Stdout)
	if detectOut != "" {
		writer, err = jsonl.NewFileWriter(detectOut)
		if err != nil {
			return err
		}
		defer writer.Close()
	}

	now := time.Now().Unix()
	outliers := 0
	for i := range scores {
		if labels[i] == detector.Outlier {
			outliers++
		}
		result := kio.Result{
			Timestamp: now,
			Score:     scores[i],
			Label:     labels[i],
			Features:  X[i],
		}
		if err := writer.Write(result); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "%d outliers in %d samples\n", outliers, len(scores))

	if preview && len(scores) > 0 {
		chart := asciigraph.Plot(scores,
			asciigraph.Height(15),
			asciigraph.Caption("anomaly score per sample"))
		fmt.Fprintln(os.Stderr, chart)
	}

	if plotPath != "" {
		plotCfg := viz.DefaultScoreConfig()
		plotCfg.Filepath = plotPath
		if t, err := d.Threshold(); err == nil {
			plotCfg.Threshold = &t
		}
		if _, err := viz.PlotAnomalyScore(scores, plotCfg); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "score chart written to %s\n", plotPath)
	}
	return nil
}

func runROC(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	X, y, err := readLabeled(cfg)
	if err != nil {
		return err
	}

	d := buildDetector(cfg)
	if err := d.Fit(X); err != nil {
		return err
	}
	scores, err := d.AnomalyScore(X)
	if err != nil {
		return err
	}

	fpr, tpr, _, err := metrics.ROCCurve(y, scores)
	if err != nil {
		return err
	}

	plotCfg := viz.DefaultROCConfig()
	plotCfg.Title = cfg.Detector
	plotCfg.Filepath = rocOut
	if _, err := viz.PlotROCCurve(y, scores, plotCfg); err != nil {
		return err
	}

	fmt.Printf("auc %.4f, chart written to %s\n", metrics.AUC(fpr, tpr), rocOut)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	X, y, err := readLabeled(cfg)
	if err != nil {
		return err
	}

	grid := eval.NewParamGrid()
	var build eval.BuildFunc

	switch cfg.Detector {
	case "gaussian":
		grid.Add("quantile", 0.9, 0.95, 0.99, 0.995)
		build = func(params map[string]float64) (detector.Detector, error) {
			return gaussian.New(gaussian.WithQuantile(params["quantile"])), nil
		}
	default:
		grid.Add("trees", 50, 100, 200)
		grid.Add("contamination", 0.01, 0.05, 0.1, 0.2)
		build = func(params map[string]float64) (detector.Detector, error) {
			return iforest.New(
				iforest.WithTrees(int(params["trees"])),
				iforest.WithContamination(params["contamination"]),
				iforest.WithSampleSize(cfg.IForest.SampleSize),
				iforest.WithSeed(cfg.Seed),
			), nil
		}
	}

	best, err := eval.GridSearch(grid, build, X, y)
	if err != nil {
		return err
	}

	fmt.Printf("best f1 %.4f\n", best.F1)
	for name, value := range best.Params {
		fmt.Printf("  %s = %g\n", name, value)
	}
	return nil
}
