// Package netif lists capture interfaces decorated for display: a readable
// label, link status, a coarse link type and a sort priority.
package netif

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
)

const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusUnknown = "unknown"

	TypeEthernet  = "ethernet"
	TypeWiFi      = "wifi"
	TypeLoopback  = "loopback"
	TypeBluetooth = "bluetooth"
	TypeUnknown   = "unknown"
)

var (
	// ErrNoStats means the stats provider has no entry for an interface
	ErrNoStats = errors.New("no link stats for interface")
	// ErrStatsUnavailable means the stats provider failed as a whole
	ErrStatsUnavailable = errors.New("link stats unavailable")
)

// LinkStats is what the link stats provider knows about an interface
type LinkStats struct {
	Up bool
}

// Enumerator lists capture interfaces and answers per-interface queries
type Enumerator interface {
	ListInterfaces() ([]string, error)
	// AddressOf returns the IPv4 address of id, empty when it has none
	AddressOf(id string) (string, error)
	Stats(id string) (LinkStats, error)
	Description(id string) string
}

// Interface is one decorated entry of the interface list
type Interface struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	IP          string `json:"ip"`
	Status      string `json:"status"`
	Type        string `json:"type"`
}

// Priority orders interfaces for display, higher first
func (i Interface) Priority() int {
	p := 0
	if i.Status == StatusUp && i.IP != "" {
		p = 1
	}
	switch i.Type {
	case TypeEthernet:
		p += 10
	case TypeWiFi:
		p += 8
	case TypeLoopback:
		p += 5
	}
	return p
}

// typeRules are checked in order against the lowercased interface name
var typeRules = []struct {
	kind    string
	needles []string
}{
	{TypeWiFi, []string{"wi-fi", "wireless", "wlan"}},
	{TypeEthernet, []string{"ethernet", "eth", "lan"}},
	{TypeLoopback, []string{"loopback", "lo"}},
	{TypeBluetooth, []string{"bluetooth", "bt"}},
}

// TypeOf guesses the link type from an interface name. Names matching no
// rule keep the ethernet default.
func TypeOf(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range typeRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.kind
			}
		}
	}
	return TypeEthernet
}

var guidSuffix = regexp.MustCompile(`_?\{[0-9A-Fa-f-]+\}$`)

// CleanName strips the Windows NPF device prefix and GUID suffix
func CleanName(name string) string {
	clean := strings.TrimPrefix(name, `\Device\`)
	clean = strings.TrimPrefix(clean, "NPF_")
	clean = guidSuffix.ReplaceAllString(clean, "")
	clean = strings.Trim(clean, "_ ")
	if clean == "" {
		return name
	}
	return clean
}

func orNoIP(ip, fallback string) string {
	if ip == "" {
		return fallback
	}
	return ip
}

// DisplayName renders the human label of a decorated interface
func DisplayName(i Interface) string {
	var label string
	switch i.Type {
	case TypeWiFi:
		label = "Wi-Fi - " + orNoIP(i.IP, "No IP")
	case TypeEthernet:
		label = "Ethernet - " + orNoIP(i.IP, "No IP")
	case TypeLoopback:
		label = "Loopback - " + orNoIP(i.IP, "127.0.0.1")
	case TypeBluetooth:
		label = "Bluetooth - " + orNoIP(i.IP, "No IP")
	default:
		name := i.Description
		if name == "" {
			name = CleanName(i.Name)
		}
		label = name + " - " + orNoIP(i.IP, "No IP")
	}
	if i.Status == StatusDown {
		label += " (inactive)"
	}
	return label
}

// decorate builds the entry for one id. ErrStatsUnavailable is returned
// unchanged so the caller can fall back to the bare list.
func decorate(enum Enumerator, id string) (iface Interface, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decorating %s: %v", id, r)
		}
	}()

	iface = Interface{
		Name:        id,
		Description: enum.Description(id),
		Status:      StatusUnknown,
		Type:        TypeEthernet,
	}

	if ip, err := enum.AddressOf(id); err == nil && ip != "0.0.0.0" {
		iface.IP = ip
	}

	stats, err := enum.Stats(id)
	switch {
	case err == nil:
		iface.Status = StatusDown
		if stats.Up {
			iface.Status = StatusUp
		}
		iface.Type = TypeOf(id)
	case errors.Is(err, ErrStatsUnavailable):
		return iface, err
	case !errors.Is(err, ErrNoStats):
		return iface, fmt.Errorf("stats for %s: %w", id, err)
	}

	iface.DisplayName = DisplayName(iface)
	return iface, nil
}

func degraded(id string) Interface {
	return Interface{
		Name:        id,
		DisplayName: "? " + id,
		Status:      StatusUnknown,
		Type:        TypeUnknown,
	}
}

func bare(ids []string) []Interface {
	out := make([]Interface, 0, len(ids))
	for _, id := range ids {
		out = append(out, Interface{
			Name:        id,
			DisplayName: CleanName(id),
			Status:      StatusUnknown,
			Type:        TypeUnknown,
		})
	}
	return out
}

// List decorates every interface of enum, keeps the ones that are up or
// addressed and sorts them by descending priority. A failing entry is
// degraded instead of failing the list; if link stats are unavailable
// altogether the undecorated id list is returned.
func List(enum Enumerator) ([]Interface, error) {
	log := logger.GetLogger()

	ids, err := enum.ListInterfaces()
	if err != nil {
		return []Interface{}, fmt.Errorf("listing interfaces: %w", err)
	}

	out := make([]Interface, 0, len(ids))
	for _, id := range ids {
		iface, err := decorate(enum, id)
		if errors.Is(err, ErrStatsUnavailable) {
			log.Warn("[netif] %v, returning undecorated interface list", err)
			return bare(ids), nil
		}
		if err != nil {
			log.Warn("[netif] Failed to decorate %s: %v", id, err)
			out = append(out, degraded(id))
			continue
		}
		if iface.Status == StatusUp || iface.IP != "" {
			out = append(out, iface)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out, nil
}
