package bringup_test

import (
	"bytes"
	"net"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clktmr/ps2/config"
	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/drivers/bringup"
	"github.com/clktmr/ps2/drivers/modules"
	"github.com/clktmr/ps2/iop/sbv"
	"github.com/clktmr/ps2/iop/sif"
	"github.com/clktmr/ps2/iop/sim"
	ps2testing "github.com/clktmr/ps2/testing"
)

const (
	opPatch = ps2testing.OpPatch
	opExec  = ps2testing.OpExec
	opStat  = ps2testing.OpStat
)

func newLoader(cfg config.Config, iop *sim.IOP, opts ...bringup.Option) (*bringup.Loader, *ps2testing.Recorder) {
	rec := ps2testing.NewRecorder(iop)
	catalog := modules.NewCatalog(ps2testing.Images())
	opts = append([]bringup.Option{bringup.WithSleep(ps2testing.NoSleep)}, opts...)
	return bringup.New(cfg, catalog, rec, opts...), rec
}

func required() []string {
	return modules.Required()
}

func concat(batches ...[]string) (all []string) {
	for _, b := range batches {
		all = append(all, b...)
	}
	return
}

func TestScenarioUSB(t *testing.T) {
	iop := sim.New(sim.WithEnumerationDelay(2))
	l, rec := newLoader(config.Default(), iop)

	require.NoError(t, l.LoadAll(true, false, true))

	assert.Equal(t, []string{
		"sbv_patch_enable_lmb", "sbv_patch_disable_prefix_check", "sbv_patch_fileio",
	}, rec.Args(opPatch))

	usb, err := modules.USB(modules.USBStandard)
	require.NoError(t, err)
	want := concat(required(), usb, modules.AudioServer())
	assert.Equal(t, want, rec.Args(opExec))
	assert.Equal(t, want, iop.Resident())

	// one readiness poll, right after the usb batch
	assert.Equal(t, []string{"mass:/", "mass:/", "mass:/"}, rec.Args(opStat))
	firstStat := rec.Index(opStat, "mass:/")
	assert.Greater(t, firstStat, rec.Index(opExec, modules.BDMFSFatFS))
	assert.Less(t, firstStat, rec.Index(opExec, modules.Audsrv))

	for _, name := range modules.HDD(true) {
		assert.Equal(t, -1, rec.Index(opExec, name), name)
	}
	assert.True(t, l.State().IsComplete())

	calls := len(rec.Calls())
	require.NoError(t, l.LoadAll(false, true, false))
	require.NoError(t, l.LoadAll(true, true, true))
	assert.Len(t, rec.Calls(), calls, "repeated bring-up must not talk to the IOP")
}

func TestPatchesBeforeModules(t *testing.T) {
	l, rec := newLoader(config.Default(), sim.New())
	require.NoError(t, l.LoadAll(true, true, false))

	calls := rec.Calls()
	require.NotEmpty(t, calls)
	for i, c := range calls[:3] {
		assert.Equal(t, opPatch, c.Op, i)
	}
	for _, c := range calls[3:] {
		assert.NotEqual(t, opPatch, c.Op)
	}
}

func TestRequiredOnly(t *testing.T) {
	iop := sim.New()
	l, rec := newLoader(config.Default(), iop)

	require.NoError(t, l.LoadAll(false, false, false))

	assert.Equal(t, concat(required(), modules.AudioServer()), rec.Args(opExec))
	assert.Zero(t, rec.Count(opStat))
	assert.True(t, l.State().IsComplete())
}

func TestHDDOrder(t *testing.T) {
	cfg := config.Default()
	cfg.LegacyATA = true
	l, rec := newLoader(cfg, sim.New())

	require.NoError(t, l.LoadAll(false, true, false))

	want := concat(required(), modules.HDD(true), modules.AudioServer())
	assert.Equal(t, want, rec.Args(opExec))
	assert.Less(t, rec.Index(opExec, modules.PS2HDD), rec.Index(opExec, modules.PS2FS))
	assert.Zero(t, rec.Count(opStat))
}

func TestUSBMini(t *testing.T) {
	cfg := config.Default()
	cfg.USB = modules.USBMini
	iop := sim.New()
	l, rec := newLoader(cfg, iop)

	require.NoError(t, l.LoadAll(true, false, false))

	execs := rec.Args(opExec)
	assert.Contains(t, execs, modules.USBDMini)
	assert.Contains(t, execs, modules.USBMassBDMini)
	assert.NotContains(t, execs, modules.USBD)
	assert.Less(t, rec.Index(opExec, modules.USBMassBDMini), rec.Index(opExec, modules.BDM))
	assert.Equal(t, 1, rec.Count(opStat))
}

func TestModuleFailureIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.LegacyATA = true
	usb, err := modules.USB(cfg.USB)
	require.NoError(t, err)
	sequence := concat(required(), usb, modules.HDD(true), modules.AudioServer())

	for i, failing := range sequence {
		t.Run(failing, func(t *testing.T) {
			iop := sim.New(sim.WithFailure(failing, -1))
			l, rec := newLoader(cfg, iop)

			err := l.LoadAll(true, true, false)
			require.Error(t, err)
			assert.True(t, errorx.IsOfType(err, bringup.ModuleLoadFailure))
			module, ok := errorx.ExtractProperty(err, bringup.ModuleProperty)
			require.True(t, ok)
			assert.Equal(t, failing, module)
			status, ok := errorx.ExtractProperty(err, bringup.StatusProperty)
			require.True(t, ok)
			assert.Equal(t, int32(-1), status)

			assert.Equal(t, sequence[:i+1], rec.Args(opExec), "nothing after the failing module is attempted")
			if i == 0 {
				assert.Empty(t, iop.Resident())
			} else {
				assert.Equal(t, sequence[:i], iop.Resident())
			}
			assert.False(t, l.State().IsComplete())
		})
	}
}

func TestPatchFailure(t *testing.T) {
	iop := sim.New(sim.WithPatchFailure(sbv.DisablePrefixCheck, -1))
	l, rec := newLoader(config.Default(), iop)

	err := l.LoadAll(true, true, false)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, bringup.PatchFailure))
	status, ok := errorx.ExtractProperty(err, bringup.StatusProperty)
	require.True(t, ok)
	assert.Equal(t, int32(-1), status)
	patch, ok := errorx.ExtractProperty(err, bringup.PatchProperty)
	require.True(t, ok)
	assert.Equal(t, "sbv_patch_disable_prefix_check", patch)
	assert.Equal(t, 2, rec.Count(opPatch))
	assert.Zero(t, rec.Count(opExec))
	assert.False(t, l.State().IsComplete())
}

func TestAlreadyPatched(t *testing.T) {
	iop := sim.New()
	require.NoError(t, sbv.Apply(iop))

	l, rec := newLoader(config.Default(), iop)
	err := l.LoadAll(false, false, false)
	assert.True(t, errorx.IsOfType(err, bringup.PatchFailure))
	assert.Zero(t, rec.Count(opExec))
}

func TestMissingImage(t *testing.T) {
	rec := ps2testing.NewRecorder(sim.New())
	catalog := modules.NewCatalog(ps2testing.Images(modules.PS2FS))
	l := bringup.New(config.Default(), catalog, rec)

	err := l.LoadAll(false, true, false)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, bringup.ModuleMissing))
	assert.True(t, errorx.IsOfType(err, bringup.ModuleLoadFailure))
	assert.Empty(t, rec.Calls(), "images are resolved before the IOP is touched")

	// without the hdd stack the missing image doesn't matter
	require.NoError(t, l.LoadAll(false, false, false))
}

func TestDeviceNeverReady(t *testing.T) {
	var logs bytes.Buffer
	iop := sim.New(sim.WithEnumerationDelay(1000))
	l, rec := newLoader(config.Default(), iop, bringup.WithLogger(zerolog.New(&logs)))

	require.NoError(t, l.LoadAll(true, false, true))

	assert.Equal(t, 50, rec.Count(opStat))
	assert.Greater(t, rec.Index(opExec, modules.Audsrv), rec.Index(opStat, "mass:/"))
	assert.True(t, l.State().IsComplete())
	assert.Contains(t, logs.String(), "mass storage device not ready")
}

func TestMassWaitDisabled(t *testing.T) {
	var logs bytes.Buffer
	cfg := config.Default()
	cfg.Mass.Retries = 0
	cfg.Mass.InitialDelay = 0
	l, rec := newLoader(cfg, sim.New(sim.WithEnumerationDelay(1000)), bringup.WithLogger(zerolog.New(&logs)))

	require.NoError(t, l.LoadAll(true, false, true))

	assert.Zero(t, rec.Count(opStat))
	assert.Less(t, rec.Index(opExec, modules.BDMFSFatFS), rec.Index(opExec, modules.Audsrv))
	assert.NotContains(t, logs.String(), "not ready")
}

func TestQuiet(t *testing.T) {
	var logs bytes.Buffer
	l, _ := newLoader(config.Default(), sim.New(), bringup.WithLogger(zerolog.New(&logs)))

	require.NoError(t, l.LoadAll(false, false, true))
	assert.NotContains(t, logs.String(), `"step":"io"`)
	assert.Contains(t, logs.String(), `"step":"audsrv"`, "the audio server is always logged")

	logs.Reset()
	require.NoError(t, l.LoadAll(false, false, true))
	assert.Contains(t, logs.String(), "already loaded")
}

func TestSharedState(t *testing.T) {
	var state bringup.State
	l1, rec1 := newLoader(config.Default(), sim.New(), bringup.WithState(&state))
	l2, rec2 := newLoader(config.Default(), sim.New(), bringup.WithState(&state))

	require.NoError(t, l1.LoadAll(false, false, false))
	require.NoError(t, l2.LoadAll(true, true, false))
	assert.NotEmpty(t, rec1.Calls())
	assert.Empty(t, rec2.Calls())
	assert.True(t, state.IsComplete())
}

func TestResetIOP(t *testing.T) {
	cfg := config.Default()
	cfg.ResetIOP = true
	iop := sim.New(sim.WithResetDelay(2))
	require.NoError(t, sbv.Apply(iop)) // left over from a previous program
	l, rec := newLoader(cfg, iop)

	require.NoError(t, l.LoadAll(false, false, false))

	calls := rec.Calls()
	assert.Equal(t, ps2testing.Call{Op: ps2testing.OpReset}, calls[0])
	assert.Equal(t, 3, rec.Count(ps2testing.OpSync))
	assert.Equal(t, 1, iop.Resets())
	assert.Equal(t, concat(required(), modules.AudioServer()), iop.Resident())
}

type noReset struct{ bringup.IOP }

func TestResetUnsupported(t *testing.T) {
	cfg := config.Default()
	cfg.ResetIOP = true
	l := bringup.New(cfg, modules.NewCatalog(ps2testing.Images()), noReset{sim.New()})

	err := l.LoadAll(false, false, false)
	assert.True(t, errorx.IsOfType(err, bringup.ResetFailure))
}

func TestMustLoadAll(t *testing.T) {
	l, _ := newLoader(config.Default(), sim.New(sim.WithFailure(modules.Padman, -200)))

	defer func() {
		r := recover()
		require.IsType(t, debug.Halted{}, r)
		assert.Contains(t, r.(debug.Halted).Message, "Failed to load module: padman")
	}()
	l.MustLoadAll(false, false, false)
	t.Fatal("MustLoadAll returned")
}

func TestOverLink(t *testing.T) {
	iop := sim.New(sim.WithEnumerationDelay(5))
	host, remote := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- sif.Serve(remote, iop) }()

	l := bringup.New(config.Default(), modules.NewCatalog(ps2testing.Images()), sif.NewClient(host),
		bringup.WithSleep(ps2testing.NoSleep))
	require.NoError(t, l.LoadAll(true, true, false))

	host.Close()
	require.NoError(t, <-done)

	usb, err := modules.USB(modules.USBStandard)
	require.NoError(t, err)
	assert.Equal(t, concat(required(), usb, modules.HDD(false), modules.AudioServer()), iop.Resident())
}
