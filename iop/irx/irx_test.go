package irx_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/clktmr/ps2/iop/irx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoad(t *testing.T) {
	img := irx.NewImage("padman", []byte{0x7f, 'E', 'L', 'F', 1, 1, 1, 0xff})

	var buf bytes.Buffer
	require.NoError(t, img.Store(&buf))

	got, err := irx.Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestLoadCorrupt(t *testing.T) {
	img := irx.NewImage("libsd", []byte("opaque module payload"))

	var buf bytes.Buffer
	require.NoError(t, img.Store(&buf))
	raw := buf.Bytes()
	raw[len(raw)-3] ^= 0x10 // flip a bit in the payload

	_, err := irx.Load(bytes.NewReader(raw))
	assert.ErrorIs(t, err, irx.ErrChecksum)
}

func TestLoadTruncated(t *testing.T) {
	img := irx.NewImage("audsrv", []byte("opaque"))

	var buf bytes.Buffer
	require.NoError(t, img.Store(&buf))

	_, err := irx.Load(bytes.NewReader(buf.Bytes()[:buf.Len()-4]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestLoadOversized(t *testing.T) {
	for name, raw := range map[string][]byte{
		"name": {0xff, 0xff, 0xff, 0xff},
		"data": {0, 0, 0, 1, 'a', 0xff, 0xff, 0xff, 0xff},
	} {
		_, err := irx.Load(bytes.NewReader(raw))
		assert.ErrorContains(t, err, "exceeds", name)
	}

	var buf bytes.Buffer
	require.NoError(t, irx.NewImage("big", make([]byte, irx.MaxSize+1)).Store(&buf))
	_, err := irx.Load(&buf)
	assert.Error(t, err)
}

func TestArgs(t *testing.T) {
	args, err := irx.ParseArgs(`-v "name with space" x=1`)
	require.NoError(t, err)
	assert.Equal(t, irx.Args{"-v", "name with space", "x=1"}, args)
	assert.Equal(t, []byte("-v\x00name with space\x00x=1\x00"), args.Bytes())
	assert.Equal(t, args, irx.ArgsFromBytes(args.Bytes()))

	assert.Nil(t, irx.Args(nil).Bytes())
	assert.Nil(t, irx.ArgsFromBytes(nil))

	_, err = irx.ParseArgs(`"unterminated`)
	assert.Error(t, err)
}

type execFunc func(name string, data, args []byte) (int32, error)

func (f execFunc) ExecModuleBuffer(name string, data, args []byte) (int32, error) {
	return f(name, data, args)
}

func TestExec(t *testing.T) {
	img := irx.NewImage("sio2man", []byte{1, 2, 3})

	var gotName string
	var gotArgs []byte
	e := execFunc(func(name string, data, args []byte) (int32, error) {
		gotName, gotArgs = name, args
		return 2, nil
	})
	res, err := irx.Exec(e, img, irx.Args{"a"})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, irx.Result(2), res)
	assert.Equal(t, "sio2man", gotName)
	assert.Equal(t, []byte("a\x00"), gotArgs)

	e = func(string, []byte, []byte) (int32, error) { return -200, nil }
	res, err = irx.Exec(e, img, nil)
	require.NoError(t, err)
	assert.False(t, res.OK())

	linkDown := errors.New("link down")
	e = func(string, []byte, []byte) (int32, error) { return 0, linkDown }
	_, err = irx.Exec(e, img, nil)
	assert.ErrorIs(t, err, linkDown)
}
