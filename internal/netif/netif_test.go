package netif

import (
	"errors"
	"net"
	"testing"

	gopcap "github.com/google/gopacket/pcap"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLink struct {
	ip       string
	ipErr    error
	stats    *LinkStats
	statsErr error
	desc     string
	panics   bool
}

type fakeEnumerator struct {
	ids     []string
	listErr error
	links   map[string]fakeLink
}

func (f *fakeEnumerator) ListInterfaces() ([]string, error) { return f.ids, f.listErr }

func (f *fakeEnumerator) AddressOf(id string) (string, error) {
	l := f.links[id]
	if l.panics {
		panic("adapter vanished")
	}
	return l.ip, l.ipErr
}

func (f *fakeEnumerator) Stats(id string) (LinkStats, error) {
	l := f.links[id]
	if l.statsErr != nil {
		return LinkStats{}, l.statsErr
	}
	if l.stats == nil {
		return LinkStats{}, ErrNoStats
	}
	return *l.stats, nil
}

func (f *fakeEnumerator) Description(id string) string { return f.links[id].desc }

var (
	up   = &LinkStats{Up: true}
	down = &LinkStats{Up: false}
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Wi-Fi", TypeWiFi},
		{"wlan0", TypeWiFi},
		{"Wireless Network Connection", TypeWiFi},
		{"eth0", TypeEthernet},
		{"Ethernet 2", TypeEthernet},
		{"vlan10", TypeEthernet},
		{"lo", TypeLoopback},
		{"Loopback Pseudo-Interface 1", TypeLoopback},
		{"Bluetooth Network Connection", TypeBluetooth},
		{"bt-pan", TypeBluetooth},
		{"docker0", TypeEthernet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.name))
		})
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`\Device\NPF_{4F3C2A1B-0000-1111-2222-333344445555}`, `\Device\NPF_{4F3C2A1B-0000-1111-2222-333344445555}`},
		{`\Device\NPF_Loopback`, "Loopback"},
		{"Local_Area_{ABCDEF01-2345}", "Local_Area"},
		{"en0", "en0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanName(tt.input), tt.input)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		iface Interface
		want  string
	}{
		{"wifi", Interface{Type: TypeWiFi, IP: "192.168.1.5", Status: StatusUp}, "Wi-Fi - 192.168.1.5"},
		{"wifi no ip", Interface{Type: TypeWiFi, Status: StatusUp}, "Wi-Fi - No IP"},
		{"ethernet down", Interface{Type: TypeEthernet, IP: "10.0.0.2", Status: StatusDown}, "Ethernet - 10.0.0.2 (inactive)"},
		{"loopback default ip", Interface{Type: TypeLoopback, Status: StatusUp}, "Loopback - 127.0.0.1"},
		{"bluetooth", Interface{Type: TypeBluetooth, Status: StatusUnknown}, "Bluetooth - No IP"},
		{"other uses description", Interface{Name: "x0", Description: "Virtual Adapter", Type: TypeUnknown}, "Virtual Adapter - No IP"},
		{"other uses clean name", Interface{Name: "Tunnel_{AB12}", Type: TypeUnknown, IP: "10.8.0.1"}, "Tunnel - 10.8.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.iface))
		})
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		iface Interface
		want  int
	}{
		{Interface{Status: StatusUp, IP: "10.0.0.1", Type: TypeEthernet}, 11},
		{Interface{Status: StatusUp, Type: TypeEthernet}, 10},
		{Interface{Status: StatusUp, IP: "10.0.0.1", Type: TypeWiFi}, 9},
		{Interface{Status: StatusDown, IP: "10.0.0.1", Type: TypeWiFi}, 8},
		{Interface{Status: StatusUp, IP: "127.0.0.1", Type: TypeLoopback}, 6},
		{Interface{Status: StatusUp, IP: "10.0.0.1", Type: TypeBluetooth}, 1},
		{Interface{Status: StatusUnknown, Type: TypeUnknown}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.iface.Priority(), "%+v", tt.iface)
	}
}

func TestList(t *testing.T) {
	enum := &fakeEnumerator{
		ids: []string{"lo", "bt0", "wlan0", "eth1", "eth0", "eth9", "mystery0"},
		links: map[string]fakeLink{
			"lo":       {ip: "127.0.0.1", stats: up},
			"bt0":      {stats: up},
			"wlan0":    {ip: "192.168.1.20", stats: up},
			"eth1":     {ip: "0.0.0.0", stats: down},
			"eth0":     {ip: "10.0.0.5", stats: up},
			"eth9":     {ip: "172.16.0.9", stats: down},
			"mystery0": {ip: "10.9.9.9"},
		},
	}

	got, err := List(enum)
	require.NoError(t, err)

	var names []string
	for _, iface := range got {
		names = append(names, iface.Name)
	}
	// eth1 is down without an address and is dropped
	assert.Equal(t, []string{"eth0", "eth9", "mystery0", "wlan0", "lo", "bt0"}, names)

	byName := map[string]Interface{}
	for _, iface := range got {
		byName[iface.Name] = iface
	}
	assert.Equal(t, Interface{
		Name: "eth0", DisplayName: "Ethernet - 10.0.0.5", IP: "10.0.0.5", Status: StatusUp, Type: TypeEthernet,
	}, byName["eth0"])
	assert.Equal(t, "Ethernet - 172.16.0.9 (inactive)", byName["eth9"].DisplayName)
	assert.Equal(t, StatusUnknown, byName["mystery0"].Status)
	assert.Equal(t, TypeEthernet, byName["mystery0"].Type)
	assert.Equal(t, "Wi-Fi - 192.168.1.20", byName["wlan0"].DisplayName)
	assert.Equal(t, "Loopback - 127.0.0.1", byName["lo"].DisplayName)
	assert.Equal(t, "Bluetooth - No IP", byName["bt0"].DisplayName)
}

func TestList_StableForEqualPriority(t *testing.T) {
	enum := &fakeEnumerator{
		ids: []string{"eth2", "eth0", "eth1"},
		links: map[string]fakeLink{
			"eth2": {ip: "10.0.0.2", stats: up},
			"eth0": {ip: "10.0.0.0", stats: up},
			"eth1": {ip: "10.0.0.1", stats: up},
		},
	}
	got, err := List(enum)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "eth2", got[0].Name)
	assert.Equal(t, "eth0", got[1].Name)
	assert.Equal(t, "eth1", got[2].Name)
}

func TestList_DegradesFailingEntry(t *testing.T) {
	enum := &fakeEnumerator{
		ids: []string{"eth0", "broken0", "odd0"},
		links: map[string]fakeLink{
			"eth0":    {ip: "10.0.0.5", stats: up},
			"broken0": {panics: true},
			"odd0":    {statsErr: errors.New("ioctl failed")},
		},
	}

	got, err := List(enum)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "eth0", got[0].Name)
	assert.Equal(t, Interface{Name: "broken0", DisplayName: "? broken0", Status: StatusUnknown, Type: TypeUnknown}, got[1])
	assert.Equal(t, Interface{Name: "odd0", DisplayName: "? odd0", Status: StatusUnknown, Type: TypeUnknown}, got[2])
}

func TestList_FallsBackToBareList(t *testing.T) {
	enum := &fakeEnumerator{
		ids: []string{`\Device\NPF_Loopback`, "eth0"},
		links: map[string]fakeLink{
			`\Device\NPF_Loopback`: {statsErr: ErrStatsUnavailable},
			"eth0":                 {statsErr: ErrStatsUnavailable},
		},
	}

	got, err := List(enum)
	require.NoError(t, err)
	assert.Equal(t, []Interface{
		{Name: `\Device\NPF_Loopback`, DisplayName: "Loopback", Status: StatusUnknown, Type: TypeUnknown},
		{Name: "eth0", DisplayName: "eth0", Status: StatusUnknown, Type: TypeUnknown},
	}, got)
}

func TestList_EnumerationFailure(t *testing.T) {
	got, err := List(&fakeEnumerator{listErr: errors.New("npcap not installed")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "npcap not installed")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSystem(t *testing.T) {
	s := &System{
		devices: func() ([]gopcap.Interface, error) {
			return []gopcap.Interface{
				{Name: "eth0", Description: "Onboard", Addresses: []gopcap.InterfaceAddress{{IP: net.ParseIP("10.0.0.5")}}},
				{Name: `\Device\NPF_{AAAA}`, Description: "Intel(R) Wi-Fi", Addresses: []gopcap.InterfaceAddress{
					{IP: net.ParseIP("fe80::1")},
					{IP: net.ParseIP("192.168.1.7")},
				}},
				{Name: "wlan1"},
				{Name: "any"},
			}, nil
		},
		links: func() ([]psnet.InterfaceStat, error) {
			return []psnet.InterfaceStat{
				{Name: "eth0", Flags: []string{"up", "broadcast"}},
				{Name: "Wi-Fi", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "192.168.1.7/24"}}},
				{Name: "wlan1", Flags: []string{"broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "fe80::2/64"}, {Addr: "172.20.0.3/16"}}},
			}, nil
		},
	}

	ids, err := s.ListInterfaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0", `\Device\NPF_{AAAA}`, "wlan1", "any"}, ids)

	tests := []struct {
		id       string
		ip       string
		stats    LinkStats
		statsErr error
		desc     string
	}{
		{id: "eth0", ip: "10.0.0.5", stats: LinkStats{Up: true}, desc: "Onboard"},
		{id: `\Device\NPF_{AAAA}`, ip: "192.168.1.7", stats: LinkStats{Up: true}, desc: "Intel(R) Wi-Fi"},
		{id: "wlan1", ip: "172.20.0.3", stats: LinkStats{Up: false}},
		{id: "any", statsErr: ErrNoStats},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			ip, err := s.AddressOf(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.ip, ip)

			stats, err := s.Stats(tt.id)
			if tt.statsErr != nil {
				assert.ErrorIs(t, err, tt.statsErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.stats, stats)
			}
			assert.Equal(t, tt.desc, s.Description(tt.id))
		})
	}

	_, err = s.AddressOf("nope")
	assert.Error(t, err)
}

func TestSystem_Failures(t *testing.T) {
	s := &System{
		devices: func() ([]gopcap.Interface, error) { return nil, errors.New("no npcap") },
		links:   func() ([]psnet.InterfaceStat, error) { return nil, nil },
	}
	_, err := s.ListInterfaces()
	assert.Error(t, err)

	s = &System{
		devices: func() ([]gopcap.Interface, error) { return []gopcap.Interface{{Name: "eth0"}}, nil },
		links:   func() ([]psnet.InterfaceStat, error) { return nil, errors.New("proc unavailable") },
	}
	ids, err := s.ListInterfaces()
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0"}, ids)

	_, err = s.Stats("eth0")
	assert.ErrorIs(t, err, ErrStatsUnavailable)

	got, err := List(s)
	require.NoError(t, err)
	assert.Equal(t, []Interface{{Name: "eth0", DisplayName: "eth0", Status: StatusUnknown, Type: TypeUnknown}}, got)
}
