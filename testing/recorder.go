// Package testing provides fakes for testing code which talks to the IOP.
package testing

import (
	"slices"
	"sync"
	"testing/fstest"
	"time"

	"github.com/clktmr/ps2/drivers/modules"
	"github.com/clktmr/ps2/iop/sbv"
	"github.com/clktmr/ps2/iop/sif"
)

// Ops recorded by Recorder.
const (
	OpPatch = "patch"
	OpExec  = "exec"
	OpStat  = "stat"
	OpReset = "reset"
	OpSync  = "sync"
)

type Call struct {
	Op  string
	Arg string // patch name, module name or path
}

// Recorder forwards all requests to an IOP and records them in order.
type Recorder struct {
	iop sif.Substrate

	mu    sync.Mutex
	calls []Call
}

var _ sif.Substrate = (*Recorder)(nil)

func NewRecorder(iop sif.Substrate) *Recorder {
	return &Recorder{iop: iop}
}

func (r *Recorder) record(op, arg string) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{op, arg})
	r.mu.Unlock()
}

func (r *Recorder) ApplyPatch(p sbv.Patch) (int32, error) {
	r.record(OpPatch, p.String())
	return r.iop.ApplyPatch(p)
}

func (r *Recorder) ExecModuleBuffer(name string, data []byte, args []byte) (int32, error) {
	r.record(OpExec, name)
	return r.iop.ExecModuleBuffer(name, data, args)
}

func (r *Recorder) Stat(path string) (int32, error) {
	r.record(OpStat, path)
	return r.iop.Stat(path)
}

func (r *Recorder) Reset() (bool, error) {
	r.record(OpReset, "")
	return r.iop.Reset()
}

func (r *Recorder) Sync() (bool, error) {
	r.record(OpSync, "")
	return r.iop.Sync()
}

// Calls returns all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Args returns the arguments of all recorded calls of op.
func (r *Recorder) Args(op string) (args []string) {
	for _, c := range r.Calls() {
		if c.Op == op {
			args = append(args, c.Arg)
		}
	}
	return
}

// Count returns how often op was called.
func (r *Recorder) Count(op string) int {
	return len(r.Args(op))
}

// Index returns the position of the first call matching op and arg, or -1.
func (r *Recorder) Index(op, arg string) int {
	return slices.Index(r.Calls(), Call{op, arg})
}

// AllModules lists every module of every batch variant.
var AllModules = []string{
	modules.IOManX, modules.FileXio, modules.Sio2man, modules.Padman,
	modules.Libsd, modules.Audsrv,
	modules.USBD, modules.USBMassBD, modules.USBDMini, modules.USBMassBDMini,
	modules.BDM, modules.BDMFSFatFS,
	modules.PS2HDD, modules.PS2FS, modules.PS2Dev9, modules.PS2Atad,
}

// Images returns a filesystem holding a dummy image for every module, except
// those named in omit.
func Images(omit ...string) fstest.MapFS {
	fsys := make(fstest.MapFS)
	for _, name := range AllModules {
		if slices.Contains(omit, name) {
			continue
		}
		fsys[name+".irx"] = &fstest.MapFile{Data: []byte("\x7fELF " + name)}
	}
	return fsys
}

// NoSleep can be used wherever a sleep function is injected.
func NoSleep(time.Duration) {}
