// Package frame turns captured frames into display records.
//
// All functions are pure: the same frame bytes always produce the same
// record. A frame that cannot be decoded degrades to an error record instead
// of failing the caller, so one bad frame never breaks a listing.
package frame

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
)

// TimeLayout is the display format of capture timestamps
const TimeLayout = "15:04:05.000"

const errorField = "Error"

// Record is the display projection of one frame
type Record struct {
	No       int    `json:"no"`
	Time     string `json:"time"`
	Src      string `json:"src"`
	Dst      string `json:"dst"`
	Protocol string `json:"protocol"`
	Length   int    `json:"length"`
	Info     string `json:"info"`
}

// Addresses is the result of the extraction path
type Addresses struct {
	Src      string
	Dst      string
	Protocol string
}

type addressSource struct {
	kind  gopacket.LayerType
	apply func(gopacket.Layer, *Addresses)
}

// addressSources are tried in order; the first decoded layer supplies the
// address pair.
var addressSources = []addressSource{
	{layers.LayerTypeIPv4, func(l gopacket.Layer, a *Addresses) {
		ip := l.(*layers.IPv4)
		a.Src, a.Dst = ip.SrcIP.String(), ip.DstIP.String()
	}},
	{layers.LayerTypeIPv6, func(l gopacket.Layer, a *Addresses) {
		ip := l.(*layers.IPv6)
		a.Src, a.Dst = ip.SrcIP.String(), ip.DstIP.String()
	}},
	{layers.LayerTypeARP, func(l gopacket.Layer, a *Addresses) {
		arp := l.(*layers.ARP)
		a.Src, a.Dst = protocolAddr(arp.SourceProtAddress), protocolAddr(arp.DstProtAddress)
		a.Protocol = "ARP"
	}},
	{layers.LayerTypeEthernet, func(l gopacket.Layer, a *Addresses) {
		eth := l.(*layers.Ethernet)
		a.Src, a.Dst = eth.SrcMAC.String(), eth.DstMAC.String()
	}},
}

// protocolLabels refine the label independently of the address pair
var protocolLabels = []struct {
	kind  gopacket.LayerType
	label string
}{
	{layers.LayerTypeTCP, "TCP"},
	{layers.LayerTypeUDP, "UDP"},
	{layers.LayerTypeICMPv4, "ICMP"},
}

func protocolAddr(b []byte) string {
	switch len(b) {
	case net.IPv4len, net.IPv6len:
		return net.IP(b).String()
	default:
		return fmt.Sprintf("%x", b)
	}
}

// decode parses the frame and rejects it when nothing usable came out:
// empty data, a link type without decoder, a link header that does not
// parse, or a decoder panic.
func decode(f common.Frame) (pkt gopacket.Packet, err error) {
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", common.ErrDecode)
	}
	defer func() {
		if r := recover(); r != nil {
			pkt = nil
			err = fmt.Errorf("%w: %v", common.ErrDecode, r)
		}
	}()

	pkt = gopacket.NewPacket(f.Data, f.LinkType, gopacket.DecodeOptions{NoCopy: true})
	ls := pkt.Layers()
	if len(ls) == 0 {
		return nil, fmt.Errorf("%w: no layers decoded", common.ErrDecode)
	}
	if failure, ok := ls[0].(*gopacket.DecodeFailure); ok {
		return nil, fmt.Errorf("%w: %v", common.ErrDecode, failure.Error())
	}
	return pkt, nil
}

func extract(pkt gopacket.Packet) Addresses {
	a := Addresses{Protocol: pkt.Layers()[0].LayerType().String()}
	for _, p := range addressSources {
		if l := decodedLayer(pkt, p.kind); l != nil {
			p.apply(l, &a)
			break
		}
	}
	for _, p := range protocolLabels {
		if decodedLayer(pkt, p.kind) != nil {
			a.Protocol = p.label
			break
		}
	}
	return a
}

// headerLen is the shortest header each inspected layer has once decoded.
// Decoders for several of these layer types attach the layer before the
// header check fails, leaving zero addresses and ports behind.
var headerLen = map[gopacket.LayerType]int{
	layers.LayerTypeEthernet: 14,
	layers.LayerTypeARP:      8,
	layers.LayerTypeIPv4:     20,
	layers.LayerTypeIPv6:     40,
	layers.LayerTypeTCP:      20,
	layers.LayerTypeUDP:      8,
	layers.LayerTypeICMPv4:   8,
	layers.LayerTypeICMPv6:   4,
}

// decodedLayer returns the layer of kind only if its header was fully read
func decodedLayer(pkt gopacket.Packet, kind gopacket.LayerType) gopacket.Layer {
	l := pkt.Layer(kind)
	if l == nil || len(l.LayerContents()) < headerLen[kind] {
		return nil
	}
	return l
}

// Extract returns source, destination and protocol label of a frame
func Extract(f common.Frame) (Addresses, error) {
	pkt, err := decode(f)
	if err != nil {
		return Addresses{}, err
	}
	return extract(pkt), nil
}

// Classify builds the display record of a frame at 1-based position no
func Classify(no int, f common.Frame) Record {
	pkt, err := decode(f)
	if err != nil {
		return Degraded(no, err)
	}
	a := extract(pkt)
	return Record{
		No:       no,
		Time:     f.Timestamp().Format(TimeLayout),
		Src:      a.Src,
		Dst:      a.Dst,
		Protocol: a.Protocol,
		Length:   f.Length(),
		Info:     summarize(pkt),
	}
}

// ClassifyAll numbers frames from 1 in the given order
func ClassifyAll(frames []common.Frame) []Record {
	out := make([]Record, len(frames))
	for i, f := range frames {
		out[i] = Classify(i+1, f)
	}
	return out
}

// Degraded is the record shown for a frame that failed classification
func Degraded(no int, err error) Record {
	return Record{
		No:       no,
		Time:     errorField,
		Src:      errorField,
		Dst:      errorField,
		Protocol: errorField,
		Length:   0,
		Info:     fmt.Sprintf("Error processing packet: %v", err),
	}
}

// Details renders a verbose per-layer dump of the frame
func Details(f common.Frame) (string, error) {
	pkt, err := decode(f)
	if err != nil {
		return "", err
	}
	header := fmt.Sprintf("Frame: %d bytes captured (%d on wire), %s, link type %s\n",
		f.CaptureInfo.CaptureLength, f.CaptureInfo.Length,
		f.Timestamp().Format("2006-01-02 15:04:05.000000"), f.LinkType)
	return header + pkt.Dump(), nil
}
