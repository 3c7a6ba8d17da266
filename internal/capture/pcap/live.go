// Package pcap captures frames from a network device through libpcap/Npcap.
package pcap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/gopacket/layers"
	gopcap "github.com/google/gopacket/pcap"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
)

const (
	DefaultSnapLen     = 65536
	DefaultReadTimeout = 100 * time.Millisecond
)

// terminalMarkers identify open failures that retrying cannot fix
var terminalMarkers = []string{
	"permission",
	"not permitted",
	"no such device",
	"access is denied",
}

// Opener opens live capture handles
type Opener struct {
	Promiscuous bool
	SnapLen     int
	ReadTimeout time.Duration

	// devices lists capture devices; swapped in tests
	devices func() ([]gopcap.Interface, error)
	log     *logger.Logger
}

// NewOpener creates an opener with the default snap length and read timeout
func NewOpener(promiscuous bool) *Opener {
	return &Opener{
		Promiscuous: promiscuous,
		SnapLen:     DefaultSnapLen,
		ReadTimeout: DefaultReadTimeout,
		devices:     gopcap.FindAllDevs,
		log:         logger.GetLogger(),
	}
}

// Open activates a handle on the configured interface and applies the BPF
// filter. Missing privileges, unknown devices and filter compile errors
// are terminal.
func (o *Opener) Open(ctx context.Context, cfg common.CaptureConfig) (common.Source, error) {
	device := o.resolveDevice(cfg.Interface)

	inactive, err := gopcap.NewInactiveHandle(device)
	if err != nil {
		return nil, classify("open "+device, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(o.SnapLen); err != nil {
		return nil, common.Terminal("set snaplen", err)
	}
	if err := inactive.SetPromisc(o.Promiscuous); err != nil {
		return nil, common.Terminal("set promisc", err)
	}
	if err := inactive.SetTimeout(o.ReadTimeout); err != nil {
		return nil, common.Terminal("set timeout", err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, classify("activate "+device, err)
	}

	if cfg.Filter != "" {
		if err := handle.SetBPFFilter(cfg.Filter); err != nil {
			handle.Close()
			return nil, common.Terminal("filter", fmt.Errorf("invalid filter %q: %w", cfg.Filter, err))
		}
	}

	o.log.Info("[capture] Opened device %s (link type %s, promiscuous %v)", device, handle.LinkType(), o.Promiscuous)
	return &Source{handle: handle, linkType: handle.LinkType()}, nil
}

// resolveDevice maps a requested name to a pcap device name. Exact names
// win, then a match on the normalized adapter description; anything else
// is passed through so libpcap reports the failure.
func (o *Opener) resolveDevice(requested string) string {
	if o.devices == nil {
		return requested
	}
	devices, err := o.devices()
	if err != nil {
		o.log.Warn("[capture] Failed to enumerate devices: %v (using %s as given)", err, requested)
		return requested
	}

	for _, dev := range devices {
		if dev.Name == requested {
			return dev.Name
		}
	}
	want := normalizeDescription(requested)
	for _, dev := range devices {
		if dev.Description != "" && normalizeDescription(dev.Description) == want {
			o.log.Debug("[capture] Using device %s for interface %s", dev.Name, requested)
			return dev.Name
		}
	}
	return requested
}

// normalizeDescription normalizes adapter descriptions for comparison
func normalizeDescription(desc string) string {
	desc = strings.ToLower(desc)
	desc = strings.Join(strings.Fields(desc), " ")

	desc = strings.TrimPrefix(desc, "microsoft ")
	desc = strings.TrimSuffix(desc, " adapter")
	desc = strings.TrimSuffix(desc, " controller")
	return desc
}

func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range terminalMarkers {
		if strings.Contains(msg, marker) {
			return common.Terminal(op, err)
		}
	}
	return common.Transient(op, err)
}

// Source reads from an activated pcap handle
type Source struct {
	mu       sync.Mutex
	handle   *gopcap.Handle
	linkType layers.LinkType
	// pending is a read error seen after frames were already collected; it
	// is reported by the next call
	pending error
}

// Sniff reads until MaxFrames frames are collected, the time budget is
// spent or ctx is cancelled. Read timeouts of the handle only re-check
// those conditions.
func (s *Source) Sniff(ctx context.Context, req common.SniffRequest) ([]common.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		err := s.pending
		s.pending = nil
		return nil, err
	}
	if s.handle == nil {
		return nil, common.Transient("read", errors.New("handle closed"))
	}

	deadline := time.Now().Add(req.Timeout)
	var out []common.Frame
	for ctx.Err() == nil && time.Now().Before(deadline) {
		if req.MaxFrames > 0 && len(out) >= req.MaxFrames {
			break
		}

		data, ci, err := s.handle.ReadPacketData()
		switch {
		case err == nil:
			out = append(out, common.Frame{CaptureInfo: ci, LinkType: s.linkType, Data: data})
		case errors.Is(err, gopcap.NextErrorTimeoutExpired):
			continue
		default:
			if errors.Is(err, io.EOF) || errors.Is(err, gopcap.NextErrorNoMorePackets) {
				err = common.Terminal("read", err)
			} else {
				err = common.Transient("read", err)
			}
			if len(out) == 0 {
				return nil, err
			}
			s.pending = err
			return out, nil
		}
	}
	return out, nil
}

// Close releases the handle
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
}
