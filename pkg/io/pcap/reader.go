// Package pcap reads packet captures and turns packets into feature
// vectors suitable for the detectors.
package pcap

import (
	"context"
	"errors"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// Reader reads packets from capture files or live interfaces and emits one
// feature vector per packet.
type Reader struct {
	handle    *pcap.Handle
	extractor *Extractor
	isLive    bool
}

// NewFileReader opens a capture file.
func NewFileReader(filename string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle, extractor: NewExtractor()}, nil
}

// NewLiveReader opens a network interface for live capture.
func NewLiveReader(iface string, snaplen int32, promisc bool, timeout time.Duration) (*Reader, error) {
	handle, err := pcap.OpenLive(iface, snaplen, promisc, timeout)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle, extractor: NewExtractor(), isLive: true}, nil
}

// Read drains the capture and returns one feature vector per packet.
func (r *Reader) Read() ([][]float64, error) {
	if r.handle == nil {
		return nil, errors.New("reader not initialized")
	}

	var data [][]float64
	source := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range source.Packets() {
		if features := r.extractor.ExtractPacket(packet); features != nil {
			data = append(data, features)
		}
	}
	return data, nil
}

// Stream returns a channel of feature vectors, one per captured packet.
func (r *Reader) Stream(ctx context.Context) (<-chan []float64, error) {
	if r.handle == nil {
		return nil, errors.New("reader not initialized")
	}

	out := make(chan []float64, 1000)
	source := gopacket.NewPacketSource(r.handle, r.handle.LinkType())

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-source.Packets():
				if !ok {
					return
				}
				features := r.extractor.ExtractPacket(packet)
				if features == nil {
					continue
				}
				select {
				case out <- features:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases the capture handle.
func (r *Reader) Close() error {
	if r.handle != nil {
		r.handle.Close()
	}
	return nil
}

// Extractor converts packets into numeric feature vectors.
type Extractor struct {
	lastTimestamp time.Time
}

// NewExtractor creates a packet feature extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract converts a raw record to a feature vector. The record must be a
// gopacket.Packet.
func (e *Extractor) Extract(data any) ([]float64, error) {
	packet, ok := data.(gopacket.Packet)
	if !ok {
		return nil, errors.New("record is not a packet")
	}
	return e.ExtractPacket(packet), nil
}

// ExtractPacket converts a packet to a feature vector:
// [packet_size, inter_arrival_time, protocol, src_port, dst_port,
// tcp_flags, ip_ttl, payload_size].
// Packets carrying neither an IPv4 layer nor a recognized transport layer
// yield nil.
func (e *Extractor) ExtractPacket(packet gopacket.Packet) []float64 {
	features := make([]float64, 8)

	features[0] = float64(len(packet.Data()))

	if metadata := packet.Metadata(); metadata != nil && !metadata.Timestamp.IsZero() {
		if !e.lastTimestamp.IsZero() {
			features[1] = metadata.Timestamp.Sub(e.lastTimestamp).Seconds()
		}
		e.lastTimestamp = metadata.Timestamp
	}

	known := false
	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		known = true
		features[2] = 6
		features[3] = float64(tcp.SrcPort)
		features[4] = float64(tcp.DstPort)
		features[5] = encodeTCPFlags(tcp)
	} else if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		known = true
		features[2] = 17
		features[3] = float64(udp.SrcPort)
		features[4] = float64(udp.DstPort)
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil {
		known = true
		features[2] = 1
	}

	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		known = true
		features[6] = float64(ipLayer.(*layers.IPv4).TTL)
	}

	if !known {
		return nil
	}

	if appLayer := packet.ApplicationLayer(); appLayer != nil {
		features[7] = float64(len(appLayer.Payload()))
	}

	return features
}

// FeatureNames returns the names of extracted features.
func (e *Extractor) FeatureNames() []string {
	return []string{
		"packet_size",
		"inter_arrival_time",
		"protocol",
		"src_port",
		"dst_port",
		"tcp_flags",
		"ip_ttl",
		"payload_size",
	}
}

func encodeTCPFlags(tcp *layers.TCP) float64 {
	var flags float64
	if tcp.SYN {
		flags += 1
	}
	if tcp.ACK {
		flags += 2
	}
	if tcp.FIN {
		flags += 4
	}
	if tcp.RST {
		flags += 8
	}
	if tcp.PSH {
		flags += 16
	}
	if tcp.URG {
		flags += 32
	}
	return flags
}
