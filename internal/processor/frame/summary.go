package frame

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// summarize renders a one-line description: the decoded layer chain, then a
// short tail describing the innermost interesting header.
//
//	Ethernet / IPv4 / TCP 10.0.0.1:443 > 10.0.0.2:51000 [SYN, ACK]
func summarize(pkt gopacket.Packet) string {
	names := make([]string, 0, 4)
	for _, l := range pkt.Layers() {
		switch l.LayerType() {
		case gopacket.LayerTypePayload, gopacket.LayerTypeDecodeFailure:
			continue
		}
		names = append(names, l.LayerType().String())
	}

	var b strings.Builder
	b.WriteString(strings.Join(names, " / "))
	if tail := describe(pkt); tail != "" {
		b.WriteString(" ")
		b.WriteString(tail)
	}
	if app := pkt.ApplicationLayer(); app != nil && pkt.TransportLayer() != nil && app.LayerType() == gopacket.LayerTypePayload {
		fmt.Fprintf(&b, " len=%d", len(app.Payload()))
	}
	if el := pkt.ErrorLayer(); el != nil {
		fmt.Fprintf(&b, " [%v]", el.Error())
	}
	return b.String()
}

func describe(pkt gopacket.Packet) string {
	src, dst := networkPair(pkt)

	if l := decodedLayer(pkt, layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		s := fmt.Sprintf("%s > %s", hostPort(src, int(tcp.SrcPort)), hostPort(dst, int(tcp.DstPort)))
		if flags := tcpFlags(tcp); flags != "" {
			s += " [" + flags + "]"
		}
		return s
	}
	if l := decodedLayer(pkt, layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		return fmt.Sprintf("%s > %s", hostPort(src, int(udp.SrcPort)), hostPort(dst, int(udp.DstPort)))
	}
	if l := decodedLayer(pkt, layers.LayerTypeICMPv4); l != nil {
		icmp := l.(*layers.ICMPv4)
		return fmt.Sprintf("%s > %s %s", src, dst, icmp.TypeCode)
	}
	if l := decodedLayer(pkt, layers.LayerTypeICMPv6); l != nil {
		icmp := l.(*layers.ICMPv6)
		return fmt.Sprintf("%s > %s %s", src, dst, icmp.TypeCode)
	}
	if l := decodedLayer(pkt, layers.LayerTypeARP); l != nil {
		arp := l.(*layers.ARP)
		switch arp.Operation {
		case layers.ARPRequest:
			return fmt.Sprintf("who has %s says %s", protocolAddr(arp.DstProtAddress), protocolAddr(arp.SourceProtAddress))
		case layers.ARPReply:
			return fmt.Sprintf("%s is at %s", protocolAddr(arp.SourceProtAddress), net.HardwareAddr(arp.SourceHwAddress))
		}
		return ""
	}
	if src != "" {
		return fmt.Sprintf("%s > %s", src, dst)
	}
	if l := decodedLayer(pkt, layers.LayerTypeEthernet); l != nil {
		eth := l.(*layers.Ethernet)
		return fmt.Sprintf("%s > %s type %#04x", eth.SrcMAC, eth.DstMAC, uint16(eth.EthernetType))
	}
	return ""
}

func networkPair(pkt gopacket.Packet) (string, string) {
	for _, kind := range []gopacket.LayerType{layers.LayerTypeIPv4, layers.LayerTypeIPv6} {
		if l := decodedLayer(pkt, kind); l != nil {
			flow := l.(gopacket.NetworkLayer).NetworkFlow()
			return flow.Src().String(), flow.Dst().String()
		}
	}
	return "", ""
}

func hostPort(host string, port int) string {
	if host == "" {
		return strconv.Itoa(port)
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func tcpFlags(tcp *layers.TCP) string {
	flags := []struct {
		set  bool
		name string
	}{
		{tcp.SYN, "SYN"},
		{tcp.ACK, "ACK"},
		{tcp.FIN, "FIN"},
		{tcp.RST, "RST"},
		{tcp.PSH, "PSH"},
		{tcp.URG, "URG"},
		{tcp.ECE, "ECE"},
		{tcp.CWR, "CWR"},
		{tcp.NS, "NS"},
	}
	var set []string
	for _, f := range flags {
		if f.set {
			set = append(set, f.name)
		}
	}
	return strings.Join(set, ", ")
}
