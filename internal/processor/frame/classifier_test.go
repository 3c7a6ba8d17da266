package frame

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/capturetest"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
)

func TestClassify(t *testing.T) {
	ts := capturetest.Epoch

	tests := []struct {
		name     string
		frame    common.Frame
		src      string
		dst      string
		protocol string
		info     []string
		absent   []string
	}{
		{
			name:     "IPv4 TCP",
			frame:    capturetest.TCPFrame(ts, "10.0.0.1", "10.0.0.2", 51000, 40080, []byte("hello")),
			src:      "10.0.0.1",
			dst:      "10.0.0.2",
			protocol: "TCP",
			info:     []string{"Ethernet / IPv4 / TCP", "10.0.0.1:51000 > 10.0.0.2:40080 [SYN]", "len=5"},
		},
		{
			name:     "IPv4 UDP",
			frame:    capturetest.UDPFrame(ts, "192.168.1.10", "192.168.1.1", 40001, 40002, []byte("x")),
			src:      "192.168.1.10",
			dst:      "192.168.1.1",
			protocol: "UDP",
			info:     []string{"Ethernet / IPv4 / UDP", "192.168.1.10:40001 > 192.168.1.1:40002"},
		},
		{
			name:     "IPv4 ICMP",
			frame:    capturetest.ICMPFrame(ts, "10.0.0.1", "8.8.8.8"),
			src:      "10.0.0.1",
			dst:      "8.8.8.8",
			protocol: "ICMP",
			info:     []string{"Ethernet / IPv4 / ICMPv4", "10.0.0.1 > 8.8.8.8 EchoRequest"},
		},
		{
			name:     "IPv6 UDP",
			frame:    capturetest.IPv6UDPFrame(ts, "2001:db8::1", "2001:db8::2", 40001, 40002),
			src:      "2001:db8::1",
			dst:      "2001:db8::2",
			protocol: "UDP",
			info:     []string{"Ethernet / IPv6 / UDP", "[2001:db8::1]:40001 > [2001:db8::2]:40002"},
		},
		{
			name:     "ARP request",
			frame:    capturetest.ARPFrame(ts, "10.0.0.1", "10.0.0.2"),
			src:      "10.0.0.1",
			dst:      "10.0.0.2",
			protocol: "ARP",
			info:     []string{"Ethernet / ARP", "who has 10.0.0.2 says 10.0.0.1"},
		},
		{
			name:     "Ethernet only",
			frame:    capturetest.LLDPLikeFrame(ts),
			src:      capturetest.SrcMAC.String(),
			dst:      capturetest.DstMAC.String(),
			protocol: "Ethernet",
			info:     []string{"Ethernet", "type 0x88b5"},
		},
		{
			name:     "IPv4 header cut short",
			frame:    truncate(capturetest.TCPFrame(ts, "10.0.0.1", "10.0.0.2", 51000, 40080, []byte("hello")), 20),
			src:      capturetest.SrcMAC.String(),
			dst:      capturetest.DstMAC.String(),
			protocol: "Ethernet",
			info:     []string{"Ethernet / IPv4", capturetest.SrcMAC.String() + " > " + capturetest.DstMAC.String()},
			absent:   []string{"<nil>"},
		},
		{
			name:     "TCP header cut short",
			frame:    truncate(capturetest.TCPFrame(ts, "10.0.0.1", "10.0.0.2", 51000, 40080, []byte("hello")), 40),
			src:      "10.0.0.1",
			dst:      "10.0.0.2",
			protocol: "Ethernet",
			info:     []string{"Ethernet / IPv4 / TCP", "10.0.0.1 > 10.0.0.2"},
			absent:   []string{"10.0.0.1:0", "10.0.0.2:0", "[SYN]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Classify(7, tt.frame)

			assert.Equal(t, 7, rec.No)
			assert.Equal(t, ts.Format(TimeLayout), rec.Time)
			assert.Equal(t, tt.src, rec.Src)
			assert.Equal(t, tt.dst, rec.Dst)
			assert.Equal(t, tt.protocol, rec.Protocol)
			assert.Equal(t, len(tt.frame.Data), rec.Length)
			for _, want := range tt.info {
				assert.Contains(t, rec.Info, want)
			}
			for _, unwanted := range tt.absent {
				assert.NotContains(t, rec.Info, unwanted)
			}
		})
	}
}

// truncate keeps the first n bytes of f as if the snap length cut it
func truncate(f common.Frame, n int) common.Frame {
	f.Data = append([]byte(nil), f.Data[:n]...)
	f.CaptureInfo.CaptureLength = n
	return f
}

func TestClassify_TimeFormat(t *testing.T) {
	rec := Classify(1, capturetest.UDPFrame(capturetest.Epoch, "10.0.0.1", "10.0.0.2", 40001, 40002, nil))
	assert.Equal(t, "13:45:30.123", rec.Time)
}

func TestClassify_Degraded(t *testing.T) {
	tests := []struct {
		name  string
		frame common.Frame
	}{
		{"truncated ethernet", capturetest.MalformedFrame(capturetest.Epoch)},
		{"empty frame", common.Frame{LinkType: layers.LinkTypeEthernet}},
		{"link type without decoder", common.Frame{
			LinkType:    layers.LinkType(250),
			Data:        []byte{1, 2, 3, 4, 5, 6, 7, 8},
			CaptureInfo: gopacket.CaptureInfo{Timestamp: capturetest.Epoch, CaptureLength: 8, Length: 8},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Classify(3, tt.frame)
			assert.Equal(t, 3, rec.No)
			assert.Equal(t, "Error", rec.Time)
			assert.Equal(t, "Error", rec.Src)
			assert.Equal(t, "Error", rec.Dst)
			assert.Equal(t, "Error", rec.Protocol)
			assert.Equal(t, 0, rec.Length)
			assert.Contains(t, rec.Info, "Error processing packet")

			_, err := Extract(tt.frame)
			assert.ErrorIs(t, err, common.ErrDecode)
		})
	}
}

func TestClassifyAll_BadFrameDoesNotBreakNeighbours(t *testing.T) {
	frames := []common.Frame{
		capturetest.TCPFrame(capturetest.Epoch, "10.0.0.1", "10.0.0.2", 51000, 40080, nil),
		capturetest.MalformedFrame(capturetest.Epoch),
		capturetest.UDPFrame(capturetest.Epoch, "10.0.0.3", "10.0.0.4", 40001, 40002, nil),
	}

	recs := ClassifyAll(frames)
	require.Len(t, recs, 3)

	assert.Equal(t, 1, recs[0].No)
	assert.Equal(t, "TCP", recs[0].Protocol)
	assert.Equal(t, "10.0.0.1", recs[0].Src)

	assert.Equal(t, 2, recs[1].No)
	assert.Equal(t, "Error", recs[1].Protocol)
	assert.Equal(t, 0, recs[1].Length)

	assert.Equal(t, 3, recs[2].No)
	assert.Equal(t, "UDP", recs[2].Protocol)
	assert.Equal(t, "10.0.0.3", recs[2].Src)
}

func TestClassify_Deterministic(t *testing.T) {
	f := capturetest.TCPFrame(capturetest.Epoch, "10.1.1.1", "10.2.2.2", 51000, 40080, []byte("payload"))
	clone := common.Frame{
		CaptureInfo: f.CaptureInfo,
		LinkType:    f.LinkType,
		Data:        append([]byte(nil), f.Data...),
	}

	first := Classify(1, f)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Classify(1, clone))
	}
}

func TestExtract(t *testing.T) {
	a, err := Extract(capturetest.ARPFrame(capturetest.Epoch, "192.168.0.5", "192.168.0.1"))
	require.NoError(t, err)
	assert.Equal(t, Addresses{Src: "192.168.0.5", Dst: "192.168.0.1", Protocol: "ARP"}, a)
}

func TestDetails(t *testing.T) {
	f := capturetest.TCPFrame(capturetest.Epoch, "10.0.0.1", "10.0.0.2", 51000, 40080, []byte("hi"))

	details, err := Details(f)
	require.NoError(t, err)
	assert.Contains(t, details, "Frame: ")
	assert.Contains(t, details, "--- Layer 1 ---")
	assert.Contains(t, details, "Ethernet")
	assert.Contains(t, details, "IPv4")
	assert.Contains(t, details, "TCP")

	_, err = Details(capturetest.MalformedFrame(capturetest.Epoch))
	assert.ErrorIs(t, err, common.ErrDecode)
}
