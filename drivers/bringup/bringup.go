// Package bringup brings the IOP into a usable state.
//
// The IOP starts with nothing but its ROM modules. Before the program can
// read controllers, play sound or access USB and HDD storage, a fixed
// sequence of modules has to be injected over SIF. The sequence is sensitive
// to order, modules link against the ones before them, and it must run only
// once, since the IOP doesn't tolerate loading modules twice.
package bringup

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/clktmr/ps2/config"
	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/drivers/mass"
	"github.com/clktmr/ps2/drivers/modules"
	"github.com/clktmr/ps2/iop/irx"
	"github.com/clktmr/ps2/iop/sbv"
)

// IOP is the part of the RPC substrate needed for the bring-up.
type IOP interface {
	sbv.Patcher
	irx.Executor
	mass.Prober
}

// Resetter is additionally required if the IOP is reset before patching.
type Resetter interface {
	Reset() (bool, error)
	Sync() (bool, error)
}

// Images resolves module names, see modules.Catalog.
type Images interface {
	Image(name string) (*irx.Image, error)
}

type Loader struct {
	cfg    config.Config
	images Images
	iop    IOP

	state *State
	log   zerolog.Logger
	sleep func(time.Duration)
}

type Option func(*Loader)

// WithState makes the Loader use a shared State.
func WithState(s *State) Option {
	return func(l *Loader) { l.state = s }
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithSleep replaces time.Sleep while waiting for devices.
func WithSleep(sleep func(time.Duration)) Option {
	return func(l *Loader) { l.sleep = sleep }
}

func New(cfg config.Config, images Images, iop IOP, opts ...Option) *Loader {
	l := &Loader{
		cfg:    cfg,
		images: images,
		iop:    iop,
		state:  &State{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) State() *State { return l.state }

// group is a batch of modules which is logged as one step.
type group struct {
	name     string
	batch    modules.Batch
	verbose  bool // log even if quiet
	waitMass bool
}

func (l *Loader) plan(withUSB, withHDD bool) ([]group, error) {
	required := modules.Required()
	debug.Assert(len(required) == 5, "required batch doesn't match its groups")
	groups := []group{
		{name: "io", batch: required[:2]},
		{name: modules.Sio2man, batch: required[2:3]},
		{name: modules.Padman, batch: required[3:4]},
		{name: modules.Libsd, batch: required[4:5]},
	}
	if withUSB {
		usb, err := modules.USB(l.cfg.USB)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group{name: "usb", batch: usb, waitMass: true})
	}
	if withHDD {
		groups = append(groups, group{name: "hdd", batch: modules.HDD(l.cfg.LegacyATA)})
	}
	groups = append(groups, group{name: modules.Audsrv, batch: modules.AudioServer(), verbose: true})

	if debug.Enabled {
		for _, g := range groups {
			debug.Assert(len(g.batch) > 0, "empty group "+g.name)
		}
	}
	return groups, nil
}

// LoadAll runs the bring-up: it applies the SBV patches, loads the required
// modules, the USB and HDD stacks if requested and finally the audio server.
// After the USB stack it waits for the mass storage device.
//
// The first error aborts the bring-up, nothing after the failing step is
// attempted and the IOP is left as is. There is no way to roll back modules.
//
// Once a bring-up completed, further calls return nil without doing
// anything, regardless of their arguments. quiet suppresses progress logs.
func (l *Loader) LoadAll(withUSB, withHDD, quiet bool) error {
	if l.state.IsComplete() {
		l.log.Info().Msg("IRX modules already loaded")
		return nil
	}

	groups, err := l.plan(withUSB, withHDD)
	if err != nil {
		return ModuleLoadFailure.Wrap(err, "invalid module selection")
	}
	images, err := l.resolve(groups)
	if err != nil {
		return err
	}

	if l.cfg.ResetIOP {
		if err := l.reset(); err != nil {
			return err
		}
	}

	if err := sbv.Apply(l.iop); err != nil {
		return err
	}

	for _, g := range groups {
		log := l.log
		if quiet && !g.verbose {
			log = zerolog.Nop()
		}

		log.Info().Str("step", g.name).Msg("IRX: loading modules")
		for _, name := range g.batch {
			if err := l.load(images[name], log); err != nil {
				return err
			}
		}
		if g.waitMass {
			l.waitMass()
		}
		log.Info().Str("step", g.name).Msg("IRX: modules loaded")
	}

	l.state.MarkComplete()
	return nil
}

// MustLoadAll is like LoadAll but halts if the bring-up fails.
func (l *Loader) MustLoadAll(withUSB, withHDD, quiet bool) {
	if err := l.LoadAll(withUSB, withHDD, quiet); err != nil {
		debug.Fatal(err.Error())
	}
}

// resolve looks up all images before anything is sent to the IOP.
func (l *Loader) resolve(groups []group) (map[string]*irx.Image, error) {
	images := make(map[string]*irx.Image)
	for _, g := range groups {
		for _, name := range g.batch {
			img, err := l.images.Image(name)
			if err != nil {
				return nil, ModuleMissing.Wrap(err, "Failed to load module: %s", name).
					WithProperty(ModuleProperty, name)
			}
			images[name] = img
		}
	}
	return images, nil
}

func (l *Loader) load(img *irx.Image, log zerolog.Logger) error {
	args, err := l.cfg.ModuleArgs(img.Name)
	if err != nil {
		return ModuleLoadFailure.Wrap(err, "Failed to load module: %s", img.Name).
			WithProperty(ModuleProperty, img.Name)
	}

	log.Debug().Stringer("image", img).Stringer("args", args).Msg("IRX: loading")
	res, err := irx.Exec(l.iop, img, args)
	if err != nil {
		return ModuleLoadFailure.Wrap(err, "Failed to load module: %s", img.Name).
			WithProperty(ModuleProperty, img.Name)
	}
	if !res.OK() {
		return ModuleLoadFailure.New("Failed to load module: %s", img.Name).
			WithProperty(ModuleProperty, img.Name).
			WithProperty(StatusProperty, int32(res))
	}
	log.Debug().Str("module", img.Name).Int32("status", int32(res)).Msg("IRX: loaded")
	return nil
}

// waitMass gives the mass storage driver time to enumerate the device. A
// device which doesn't show up isn't fatal, file operations on it will fail
// later on.
func (l *Loader) waitMass() {
	q := l.cfg.MassQuery()
	q.Sleep = l.sleep
	if !mass.WaitUntilReady(l.iop, q) && q.Retries > 0 {
		l.log.Warn().Str("path", q.Path).Msg("mass storage device not ready, continuing")
	}
}

// reset reboots the IOP and waits until it's back.
func (l *Loader) reset() error {
	r, ok := l.iop.(Resetter)
	if !ok {
		return ResetFailure.New("IOP can't be reset")
	}
	for _, f := range []func() (bool, error){r.Reset, r.Sync} {
		for {
			done, err := f()
			if err != nil {
				return ResetFailure.Wrap(err, "resetting IOP")
			}
			if done {
				break
			}
			runtime.Gosched()
		}
	}
	return nil
}
