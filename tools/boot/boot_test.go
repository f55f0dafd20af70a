package boot_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/drivers/irxfs"
	"github.com/clktmr/ps2/drivers/modules"
	ps2testing "github.com/clktmr/ps2/testing"
	"github.com/clktmr/ps2/tools/boot"
	"github.com/clktmr/ps2/tools/pack"
)

func moduleDir(t *testing.T, omit ...string) string {
	dir := t.TempDir()
	for name, f := range ps2testing.Images(omit...) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), f.Data, 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) error {
	cmd := boot.Command()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestBootSim(t *testing.T) {
	dir := moduleDir(t)
	assert.NoError(t, execute(t, "--sim", "--hdd", "--quiet", "-m", dir))
}

func TestBootSimArchive(t *testing.T) {
	dir := moduleDir(t)
	files, err := filepath.Glob(filepath.Join(dir, "*.irx"))
	require.NoError(t, err)
	archive := filepath.Join(t.TempDir(), "modules.irxa")
	log := zerolog.Nop()
	require.NoError(t, pack.Pack(&log, archive, files...))

	assert.NoError(t, execute(t, "--sim", "--reset-delay", "2", "-m", archive))
}

func TestBootConfig(t *testing.T) {
	dir := moduleDir(t)
	cfg := filepath.Join(t.TempDir(), "iop.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("modules: "+dir+"\nreset_iop: true\n"), 0o644))

	assert.NoError(t, execute(t, "--sim", "-c", cfg))
}

func TestBootMissingModule(t *testing.T) {
	dir := moduleDir(t, modules.Padman, modules.USBD)
	var logs bytes.Buffer
	defer func() {
		h, ok := recover().(debug.Halted)
		require.True(t, ok, "bring-up didn't halt")
		assert.Contains(t, h.Message, "Failed to load module: padman")
		assert.Contains(t, logs.String(), `"missing":["padman","usbd"]`)
	}()

	cmd := boot.Command()
	cmd.SetArgs([]string{"--sim", "--usb", "-m", dir})
	cmd.ExecuteContext(zerolog.New(&logs).WithContext(context.Background()))
}

func TestBootCorruptArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "bad.irxa")
	raw := binary.BigEndian.AppendUint64([]byte("IRXA"), 1<<50)
	require.NoError(t, os.WriteFile(archive, raw, 0o644))

	err := execute(t, "--sim", "-m", archive)
	assert.True(t, errorx.IsOfType(err, irxfs.InvalidImage))
}

func TestBootFlags(t *testing.T) {
	dir := moduleDir(t)
	assert.Error(t, execute(t, "-m", dir))
	assert.Error(t, execute(t, "--sim", "--device", "/dev/null", "-m", dir))
	assert.Error(t, execute(t, "--sim", "-m", filepath.Join(dir, "nonexistent")))
	assert.Error(t, execute(t, "--exec", "'unterminated", "-m", dir))
}

func TestOpenImages(t *testing.T) {
	dir := moduleDir(t)
	c, closer, err := boot.OpenImages(dir)
	require.NoError(t, err)
	defer closer()

	img, err := c.Image(modules.Audsrv)
	require.NoError(t, err)
	assert.Equal(t, modules.Audsrv, img.Name)

	_, _, err = boot.OpenImages(filepath.Join(dir, modules.Audsrv+".irx"))
	assert.Error(t, err, "not an archive")
}
