//go:build !usbmini && !atad

package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/clktmr/ps2/config"
	"github.com/clktmr/ps2/drivers/modules"
	"github.com/clktmr/ps2/iop/irx"
	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, modules.USBStandard, cfg.USB)
	assert.False(t, cfg.LegacyATA)
	assert.False(t, cfg.ResetIOP)
	assert.Equal(t, "mass:/", cfg.Mass.Path)
	assert.Equal(t, 50, cfg.Mass.Retries)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(strings.NewReader(`
usb: mini
legacy_ata: true
reset_iop: true
modules: irx/modules.irxa
args:
  audsrv: "-q --name 'audio server'"
mass:
  retries: 10
  interval: 50ms
`))
	require.NoError(t, err)
	assert.Equal(t, modules.USBMini, cfg.USB)
	assert.True(t, cfg.LegacyATA)
	assert.True(t, cfg.ResetIOP)
	assert.Equal(t, "irx/modules.irxa", cfg.Modules)
	assert.Equal(t, 10, cfg.Mass.Retries)
	assert.Equal(t, 50*time.Millisecond, cfg.Mass.Interval)
	assert.Equal(t, "mass:/", cfg.Mass.Path, "unset fields keep defaults")

	args, err := cfg.ModuleArgs(modules.Audsrv)
	require.NoError(t, err)
	assert.Equal(t, irx.Args{"-q", "--name", "audio server"}, args)

	args, err = cfg.ModuleArgs(modules.Padman)
	require.NoError(t, err)
	assert.Nil(t, args)

	q := cfg.MassQuery()
	assert.Equal(t, 10, q.Retries)
	assert.Equal(t, "mass:/", q.Path)
}

func TestLoadNoWait(t *testing.T) {
	cfg, err := config.Load(strings.NewReader("mass: {retries: 0, initial_delay: 0s}\n"))
	require.NoError(t, err)
	q := cfg.MassQuery()
	assert.Zero(t, q.Retries)
	assert.Zero(t, q.InitialDelay)
	assert.Equal(t, 20*time.Millisecond, q.Interval)
}

func TestLoadEmpty(t *testing.T) {
	cfg, err := config.Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"variant":  "usb: full\n",
		"unknown":  "usb_variant: mini\n",
		"args":     "args: {padman: \"'unterminated\"}\n",
		"retries":  "mass: {retries: -1}\n",
		"duration": "mass: {interval: soon}\n",
		"delay":    "mass: {initial_delay: -1s}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(strings.NewReader(doc))
			require.Error(t, err)
			assert.True(t, errorx.IsOfType(err, config.InvalidConfig), "got %v", err)
		})
	}
}
