// Package export writes buffered frames to the classic pcap interchange
// format and reads pcap/pcapng files back.
package export

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
)

// SnapLen is the snapshot length written in the file header
const SnapLen = 65536

// ContentType is the media type of an encoded capture
const ContentType = "application/vnd.tcpdump.pcap"

// FileName returns the suggested name of a capture saved at t
func FileName(t time.Time) string {
	return fmt.Sprintf("capture_%s.pcap", t.Format("20060102_150405"))
}

// Encode writes frames as a classic pcap stream. The file link type is the
// one of the first frame, Ethernet when there are none.
func Encode(w io.Writer, frames []common.Frame) error {
	linkType := layers.LinkTypeEthernet
	if len(frames) > 0 {
		linkType = frames[0].LinkType
	}

	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(SnapLen, linkType); err != nil {
		return fmt.Errorf("%w: write header: %v", common.ErrEncode, err)
	}
	for i, f := range frames {
		ci := f.CaptureInfo
		if ci.CaptureLength != len(f.Data) {
			ci.CaptureLength = len(f.Data)
		}
		if ci.Length < ci.CaptureLength {
			ci.Length = ci.CaptureLength
		}
		if err := writer.WritePacket(ci, f.Data); err != nil {
			return fmt.Errorf("%w: write frame %d: %v", common.ErrEncode, i, err)
		}
	}
	return nil
}

// EncodeBytes encodes frames into memory
func EncodeBytes(frames []common.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, frames); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FrameReader is satisfied by both pcapgo.Reader and pcapgo.NgReader
type FrameReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Open detects the file format and returns a reader positioned at the first
// frame. pcapng is tried first, then classic pcap.
func Open(r io.Reader) (FrameReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("error reading capture header: %w", err)
	}

	// pcapng section header block type
	if bytes.Equal(magic, []byte{0x0a, 0x0d, 0x0d, 0x0a}) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("error creating pcapng reader: %w", err)
		}
		return ng, nil
	}

	reader, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("error creating pcap reader: %w", err)
	}
	return reader, nil
}

// Read decodes every frame of a pcap or pcapng stream
func Read(r io.Reader) ([]common.Frame, error) {
	reader, err := Open(r)
	if err != nil {
		return nil, err
	}

	var frames []common.Frame
	for {
		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("error reading frame %d: %w", len(frames)+1, err)
		}
		frames = append(frames, common.Frame{
			CaptureInfo: ci,
			LinkType:    reader.LinkType(),
			Data:        append([]byte(nil), data...),
		})
	}
}

// PacketStats holds statistics about a capture file
type PacketStats struct {
	TotalPackets   uint64
	TotalBytes     uint64
	ProtocolCounts map[string]uint64
}

func (s PacketStats) String() string {
	names := make([]string, 0, len(s.ProtocolCounts))
	for name := range s.ProtocolCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, s.ProtocolCounts[name]))
	}
	return fmt.Sprintf("Total Packets: %d\nTotal Bytes: %d\nProtocol Distribution: %s",
		s.TotalPackets, s.TotalBytes, strings.Join(parts, " "))
}

// Stats reads a capture stream and counts frames, bytes and layer types
func Stats(r io.Reader) (*PacketStats, error) {
	frames, err := Read(r)
	if err != nil {
		return nil, err
	}

	stats := &PacketStats{ProtocolCounts: make(map[string]uint64)}
	for _, f := range frames {
		stats.TotalPackets++
		stats.TotalBytes += uint64(len(f.Data))

		pkt := gopacket.NewPacket(f.Data, f.LinkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		for _, layer := range pkt.Layers() {
			stats.ProtocolCounts[layer.LayerType().String()]++
		}
	}
	return stats, nil
}
