// Package sim provides an in-process IOP.
//
// The simulated IOP doesn't execute modules. It keeps track of which modules
// are resident and enforces what the real one would: buffer loads need the
// LMB patch, every module's imports must be resident before it links, and
// block devices show up some time after their drivers were loaded.
package sim

import (
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/clktmr/ps2/iop/irx"
	"github.com/clktmr/ps2/iop/sbv"
	"github.com/clktmr/ps2/iop/sif"
)

// Status codes as returned by the IOP kernel and its file services.
const (
	StatusNoLMB          = -1
	StatusLinkError      = -200
	StatusAlreadyStarted = -206

	StatusNoEntry  = -2  // ENOENT
	StatusIO       = -5  // EIO
	StatusNoDevice = -19 // ENODEV
)

// DefaultLinks maps each module to the modules it imports from.
var DefaultLinks = map[string][]string{
	"fileXio":         {"iomanX"},
	"padman":          {"sio2man"},
	"audsrv":          {"libsd"},
	"usbmass_bd":      {"usbd"},
	"usbmass_bd_mini": {"usbd_mini"},
	"bdm":             {"iomanX"},
	"bdmfs_fatfs":     {"bdm"},
	"ps2fs":           {"ps2hdd"},
	"ps2atad":         {"ps2dev9"},
}

// IOP is a simulated I/O processor. It is safe for concurrent use.
type IOP struct {
	mu sync.Mutex

	patches  map[sbv.Patch]bool
	resident []string

	links         map[string][]string
	failures      map[string]int32
	patchFailures map[sbv.Patch]int32

	enumDelay  int
	enumProbes int
	massImage  string

	resetDelay  int
	syncPending int
	resets      int

	log zerolog.Logger
}

var _ sif.Substrate = (*IOP)(nil)

type Option func(*IOP)

// WithFailure makes loading module name return status.
func WithFailure(name string, status int32) Option {
	return func(p *IOP) { p.failures[name] = status }
}

// WithPatchFailure makes applying patch return status.
func WithPatchFailure(patch sbv.Patch, status int32) Option {
	return func(p *IOP) { p.patchFailures[patch] = status }
}

// WithEnumerationDelay sets the number of probes mass: stays unavailable
// after the mass storage stack became resident.
func WithEnumerationDelay(probes int) Option {
	return func(p *IOP) { p.enumDelay = probes }
}

// WithMassImage backs mass: with a FAT formatted disk image.
func WithMassImage(path string) Option {
	return func(p *IOP) { p.massImage = path }
}

// WithLinks replaces the module import table.
func WithLinks(links map[string][]string) Option {
	return func(p *IOP) { p.links = links }
}

// WithResetDelay sets how many times Sync reports a reset in progress.
func WithResetDelay(syncs int) Option {
	return func(p *IOP) { p.resetDelay = syncs }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *IOP) { p.log = log }
}

func New(opts ...Option) *IOP {
	p := &IOP{
		patches:       make(map[sbv.Patch]bool),
		links:         DefaultLinks,
		failures:      make(map[string]int32),
		patchFailures: make(map[sbv.Patch]int32),
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *IOP) ApplyPatch(patch sbv.Patch) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if status, ok := p.patchFailures[patch]; ok {
		return status, nil
	}
	if p.patches[patch] {
		// patching twice means we are talking to an already initialized IOP
		return -1, nil
	}
	p.patches[patch] = true
	p.log.Debug().Stringer("patch", patch).Msg("patch applied")
	return 0, nil
}

func (p *IOP) ExecModuleBuffer(name string, data []byte, args []byte) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.patches[sbv.EnableLMB] {
		return StatusNoLMB, nil
	}
	if status, ok := p.failures[name]; ok {
		return status, nil
	}
	if slices.Contains(p.resident, name) {
		return StatusAlreadyStarted, nil
	}
	for _, dep := range p.links[name] {
		if !slices.Contains(p.resident, dep) {
			p.log.Debug().Str("module", name).Str("missing", dep).Msg("link error")
			return StatusLinkError, nil
		}
	}
	p.resident = append(p.resident, name)
	p.log.Debug().Str("module", name).Int("size", len(data)).
		Stringer("args", irx.ArgsFromBytes(args)).Msg("module started")
	return 0, nil
}

// Stat probes path on one of the devices the IOP knows of. Devices are
// available once their driver stack is resident.
func (p *IOP) Stat(path string) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.patches[sbv.EnableFileIO] {
		return StatusIO, nil
	}

	dev, rest, found := strings.Cut(path, ":")
	if !found {
		return StatusNoEntry, nil
	}
	switch dev {
	case "mass":
		if !p.massResident() {
			return StatusNoDevice, nil
		}
		if p.enumProbes < p.enumDelay {
			p.enumProbes++
			return StatusNoDevice, nil
		}
		if p.massImage == "" {
			return 0, nil
		}
		return statImage(p.massImage, rest)
	case "hdd0":
		if !p.residentAll("ps2hdd", "ps2fs", "ps2dev9") {
			return StatusNoDevice, nil
		}
		return 0, nil
	}
	return StatusNoDevice, nil
}

func (p *IOP) massResident() bool {
	usb := p.residentAll("usbd", "usbmass_bd") || p.residentAll("usbd_mini", "usbmass_bd_mini")
	return usb && p.residentAll("bdm", "bdmfs_fatfs")
}

func (p *IOP) residentAll(names ...string) bool {
	for _, name := range names {
		if !slices.Contains(p.resident, name) {
			return false
		}
	}
	return true
}

// Reset reboots the IOP, dropping all patches and modules.
func (p *IOP) Reset() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	clear(p.patches)
	p.resident = nil
	p.enumProbes = 0
	p.syncPending = p.resetDelay
	p.resets++
	return true, nil
}

func (p *IOP) Sync() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.syncPending > 0 {
		p.syncPending--
		return false, nil
	}
	return true, nil
}

// Resident returns the names of all loaded modules in load order.
func (p *IOP) Resident() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.resident)
}

func (p *IOP) Patched(patch sbv.Patch) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.patches[patch]
}

// Resets returns how often the IOP was reset.
func (p *IOP) Resets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}
