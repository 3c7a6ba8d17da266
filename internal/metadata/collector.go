package metadata

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/version"
)

// maxHostIPs caps the addresses reported for the host
const maxHostIPs = 10

// Host describes the machine the viewer runs on
type Host struct {
	InstanceID   string   `json:"instance_id"`
	MachineID    string   `json:"machine_id"`
	Hostname     string   `json:"hostname"`
	Version      string   `json:"version"`
	OSName       string   `json:"os_name"`
	OSVersion    string   `json:"os_version"`
	Architecture string   `json:"architecture"`
	HostIPs      []string `json:"host_ips,omitempty"`
}

// Collector gathers host metadata. The static part is computed once; host
// addresses are refreshed on every call since they follow the capture
// interface.
type Collector struct {
	static Host
}

// NewCollector computes the static host fields and a fresh instance id
func NewCollector() *Collector {
	hostname, _ := os.Hostname()
	osVersion := runtime.GOOS
	if info, err := host.Info(); err == nil {
		if info.Hostname != "" {
			hostname = info.Hostname
		}
		osVersion = formatPlatform(info.Platform, info.PlatformVersion)
	}
	if osVersion == "" || osVersion == runtime.GOOS {
		osVersion = fallbackOSVersion()
	}

	return &Collector{static: Host{
		InstanceID:   uuid.NewString(),
		MachineID:    machineID(),
		Hostname:     hostname,
		Version:      version.Version,
		OSName:       runtime.GOOS,
		OSVersion:    osVersion,
		Architecture: runtime.GOARCH,
	}}
}

// Collect returns the host metadata, preferring the address of
// captureInterface when it has one
func (c *Collector) Collect(captureInterface string) Host {
	h := c.static
	h.HostIPs = hostIPs(captureInterface)
	return h
}

func formatPlatform(platform, ver string) string {
	switch {
	case platform != "" && ver != "":
		return platform + " " + ver
	case platform != "":
		return platform
	default:
		return ""
	}
}

// privateIPv4 returns the private IPv4 addresses of iface
func privateIPv4(iface net.Interface) []string {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil
	}
	var out []string
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip := ipnet.IP.To4(); ip != nil && ip.IsPrivate() {
			out = append(out, ip.String())
		}
	}
	return out
}

// hostIPs returns private host addresses. The capture interface's own
// address wins when it is up and has one; otherwise every up, non-loopback
// interface contributes, capped at maxHostIPs.
func hostIPs(captureInterface string) []string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	if captureInterface != "" {
		for _, iface := range interfaces {
			if iface.Name == captureInterface && iface.Flags&net.FlagUp != 0 {
				if ips := privateIPv4(iface); len(ips) > 0 {
					return ips[:1]
				}
			}
		}
	}

	var ips []string
	seen := make(map[string]bool)
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		for _, ip := range privateIPv4(iface) {
			if seen[ip] {
				continue
			}
			seen[ip] = true
			ips = append(ips, ip)
			if len(ips) >= maxHostIPs {
				return ips
			}
		}
	}
	return ips
}

// machineID is a SHA256 of the primary MAC address
func machineID() string {
	mac := primaryMAC()
	if mac == "" {
		mac = "unknown-device"
	}
	sum := sha256.Sum256([]byte(mac))
	return hex.EncodeToString(sum[:])
}

// primaryMAC prefers wired, then wireless interfaces, in name order
func primaryMAC() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	sort.Slice(interfaces, func(i, j int) bool {
		return interfaces[i].Name < interfaces[j].Name
	})

	usable := func(iface net.Interface) bool {
		return iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0
	}
	for _, prefix := range []string{"eth", "en", "wlan", "wl"} {
		for _, iface := range interfaces {
			if strings.HasPrefix(iface.Name, prefix) && usable(iface) {
				return iface.HardwareAddr.String()
			}
		}
	}
	for _, iface := range interfaces {
		if usable(iface) {
			return iface.HardwareAddr.String()
		}
	}
	return ""
}

// fallbackOSVersion reads /etc/os-release where the platform lookup failed
func fallbackOSVersion() string {
	if runtime.GOOS != "linux" {
		return runtime.GOOS
	}
	file, err := os.Open("/etc/os-release")
	if err != nil {
		return "Linux"
	}
	defer file.Close()

	var name, ver string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "NAME="):
			name = strings.Trim(strings.TrimPrefix(line, "NAME="), `"`)
		case strings.HasPrefix(line, "VERSION="):
			ver = strings.Trim(strings.TrimPrefix(line, "VERSION="), `"`)
		}
	}
	if v := formatPlatform(name, ver); v != "" {
		return v
	}
	return "Linux"
}
