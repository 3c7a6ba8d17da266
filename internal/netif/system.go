package netif

import (
	"fmt"
	"net"
	"strings"
	"sync"

	gopcap "github.com/google/gopacket/pcap"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// System enumerates capture devices through libpcap/Npcap and reads link
// status from the operating system. Each ListInterfaces call takes a fresh
// snapshot that the per-id queries answer from.
type System struct {
	devices func() ([]gopcap.Interface, error)
	links   func() ([]psnet.InterfaceStat, error)

	mu       sync.Mutex
	devs     map[string]gopcap.Interface
	stats    map[string]psnet.InterfaceStat
	statsErr error
}

// NewSystem creates the live enumerator
func NewSystem() *System {
	return &System{
		devices: gopcap.FindAllDevs,
		links: func() ([]psnet.InterfaceStat, error) {
			return psnet.Interfaces()
		},
	}
}

// ListInterfaces implements Enumerator
func (s *System) ListInterfaces() ([]string, error) {
	devices, err := s.devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	links, linkErr := s.links()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.devs = make(map[string]gopcap.Interface, len(devices))
	ids := make([]string, 0, len(devices))
	for _, dev := range devices {
		s.devs[dev.Name] = dev
		ids = append(ids, dev.Name)
	}

	s.stats = make(map[string]psnet.InterfaceStat, len(links))
	s.statsErr = nil
	if linkErr != nil {
		s.statsErr = fmt.Errorf("%w: %v", ErrStatsUnavailable, linkErr)
	}
	for _, link := range links {
		s.stats[link.Name] = link
	}
	return ids, nil
}

// AddressOf implements Enumerator. The pcap device addresses are used
// first, then the addresses the OS reports for the matching link.
func (s *System) AddressOf(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devs[id]
	if !ok {
		return "", fmt.Errorf("unknown interface %s", id)
	}
	for _, addr := range dev.Addresses {
		if ip := addr.IP.To4(); ip != nil && !ip.IsUnspecified() {
			return ip.String(), nil
		}
	}
	if link, ok := s.linkFor(dev); ok {
		if ip := firstIPv4(link); ip != "" {
			return ip, nil
		}
	}
	return "", nil
}

// Stats implements Enumerator
func (s *System) Stats(id string) (LinkStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statsErr != nil {
		return LinkStats{}, s.statsErr
	}
	dev, ok := s.devs[id]
	if !ok {
		return LinkStats{}, ErrNoStats
	}
	link, ok := s.linkFor(dev)
	if !ok {
		return LinkStats{}, ErrNoStats
	}
	return LinkStats{Up: hasFlag(link, "up")}, nil
}

// Description implements Enumerator
func (s *System) Description(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devs[id].Description
}

// linkFor matches a pcap device to an OS link by name, or by a shared IPv4
// address where the names differ (NPF device names on Windows).
func (s *System) linkFor(dev gopcap.Interface) (psnet.InterfaceStat, bool) {
	if link, ok := s.stats[dev.Name]; ok {
		return link, true
	}
	for _, addr := range dev.Addresses {
		ip := addr.IP.To4()
		if ip == nil || ip.IsUnspecified() {
			continue
		}
		for _, link := range s.stats {
			for _, la := range link.Addrs {
				if linkIP(la.Addr).Equal(ip) {
					return link, true
				}
			}
		}
	}
	return psnet.InterfaceStat{}, false
}

func linkIP(addr string) net.IP {
	if ip, _, err := net.ParseCIDR(addr); err == nil {
		return ip
	}
	return net.ParseIP(addr)
}

func firstIPv4(link psnet.InterfaceStat) string {
	for _, la := range link.Addrs {
		if ip := linkIP(la.Addr).To4(); ip != nil && !ip.IsUnspecified() {
			return ip.String()
		}
	}
	return ""
}

func hasFlag(link psnet.InterfaceStat, flag string) bool {
	for _, f := range link.Flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}
