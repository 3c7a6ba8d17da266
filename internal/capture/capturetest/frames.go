// Package capturetest builds synthetic frames and scripted capture sources
// for tests of the capture session, classifier, export and HTTP layers.
package capturetest

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
)

var (
	// SrcMAC and DstMAC are the hardware addresses used by every built frame
	SrcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	DstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
)

// Epoch is the capture timestamp of frames built without an explicit time
var Epoch = time.Date(2024, 5, 1, 13, 45, 30, 123456000, time.Local)

func serialize(ts time.Time, ls ...gopacket.SerializableLayer) common.Frame {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		panic(fmt.Sprintf("capturetest: serialize: %v", err))
	}
	data := append([]byte(nil), buf.Bytes()...)
	return common.Frame{
		CaptureInfo: gopacket.CaptureInfo{
			Timestamp:     ts,
			CaptureLength: len(data),
			Length:        len(data),
		},
		LinkType: layers.LinkTypeEthernet,
		Data:     data,
	}
}

func ethernet(t layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: SrcMAC, DstMAC: DstMAC, EthernetType: t}
}

func ipv4(src, dst string, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
}

// TCPFrame builds an Ethernet/IPv4/TCP frame with the SYN flag set
func TCPFrame(ts time.Time, src, dst string, sport, dport uint16, payload []byte) common.Frame {
	ip := ipv4(src, dst, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(sport),
		DstPort: layers.TCPPort(dport),
		Seq:     1000,
		SYN:     true,
		Window:  65535,
	}
	_ = tcp.SetNetworkLayerForChecksum(ip)
	return serialize(ts, ethernet(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(payload))
}

// UDPFrame builds an Ethernet/IPv4/UDP frame
func UDPFrame(ts time.Time, src, dst string, sport, dport uint16, payload []byte) common.Frame {
	ip := ipv4(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(ts, ethernet(layers.EthernetTypeIPv4), ip, udp, gopacket.Payload(payload))
}

// ICMPFrame builds an Ethernet/IPv4/ICMP echo request
func ICMPFrame(ts time.Time, src, dst string) common.Frame {
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       1,
		Seq:      1,
	}
	return serialize(ts, ethernet(layers.EthernetTypeIPv4), ipv4(src, dst, layers.IPProtocolICMPv4), icmp, gopacket.Payload([]byte("ping")))
}

// IPv6UDPFrame builds an Ethernet/IPv6/UDP frame
func IPv6UDPFrame(ts time.Time, src, dst string, sport, dport uint16) common.Frame {
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolUDP,
		HopLimit:   64,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(ts, ethernet(layers.EthernetTypeIPv6), ip, udp, gopacket.Payload([]byte("v6")))
}

// ARPFrame builds an Ethernet/ARP who-has request
func ARPFrame(ts time.Time, senderIP, targetIP string) common.Frame {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   SrcMAC,
		SourceProtAddress: net.ParseIP(senderIP).To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    net.ParseIP(targetIP).To4(),
	}
	return serialize(ts, ethernet(layers.EthernetTypeARP), arp)
}

// LLDPLikeFrame builds an Ethernet frame whose EtherType has no decoder, so
// only the link-layer header is classified
func LLDPLikeFrame(ts time.Time) common.Frame {
	return serialize(ts, ethernet(layers.EthernetType(0x88b5)), gopacket.Payload([]byte{1, 2, 3, 4}))
}

// MalformedFrame returns a frame too short to hold an Ethernet header
func MalformedFrame(ts time.Time) common.Frame {
	data := []byte{0xde, 0xad, 0xbe}
	return common.Frame{
		CaptureInfo: gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)},
		LinkType:    layers.LinkTypeEthernet,
		Data:        data,
	}
}

// Numbered returns n distinct UDP frames whose source port encodes their
// index, one millisecond apart, starting at Epoch
func Numbered(n int) []common.Frame {
	frames := make([]common.Frame, n)
	for i := range frames {
		frames[i] = UDPFrame(Epoch.Add(time.Duration(i)*time.Millisecond), "10.0.0.1", "10.0.0.2", uint16(1024+i), 40000, []byte{byte(i)})
	}
	return frames
}
