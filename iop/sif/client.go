package sif

import (
	"io"
	"sync"

	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/iop/irx"
	"github.com/clktmr/ps2/iop/sbv"
)

// Client issues requests over a link to a remote IOP and blocks until the
// reply arrives. There is no timeout, an unresponsive IOP hangs the caller.
type Client struct {
	mu sync.Mutex
	rw io.ReadWriter
}

var _ Substrate = (*Client)(nil)

func NewClient(rw io.ReadWriter) *Client {
	return &Client{rw: rw}
}

// call sends a request and waits for its status reply. The link is strictly
// request/reply, concurrent calls are serialized.
func (c *Client) call(cmd command, payload []byte) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeFrame(c.rw, cmd, payload); err != nil {
		return 0, err
	}
	rcmd, rpayload, err := readFrame(c.rw)
	if err != nil {
		return 0, unexpectedEOF(err)
	}
	switch rcmd {
	case cmd | replyFlag:
	case cmdError | replyFlag:
		return 0, ProtocolError.New("remote: %s", rpayload)
	default:
		return 0, ProtocolError.New("unexpected reply %#x to command %#x", uint8(rcmd), uint8(cmd))
	}

	d := newDecoder(rpayload)
	status := d.getI32()
	if err := d.done(); err != nil {
		return 0, err
	}
	return status, nil
}

func (c *Client) ApplyPatch(p sbv.Patch) (int32, error) {
	var e encoder
	e.putU8(uint8(p))
	return c.call(cmdPatch, e.Bytes())
}

func (c *Client) ExecModuleBuffer(name string, data []byte, args []byte) (int32, error) {
	var e encoder
	e.putBytes32(args)
	debug.AssertErrNil(irx.NewImage(name, data).Store(&e)) // writes to memory
	return c.call(cmdExec, e.Bytes())
}

// Stat returns 0 if path exists on the IOP, or a negative errno.
func (c *Client) Stat(path string) (int32, error) {
	return c.call(cmdStat, []byte(path))
}

// Reset reboots the IOP. It returns false if the IOP didn't accept the
// request and it should be repeated.
func (c *Client) Reset() (bool, error) {
	ret, err := c.call(cmdReset, nil)
	return ret != 0, err
}

// Sync returns true once the IOP finished rebooting.
func (c *Client) Sync() (bool, error) {
	ret, err := c.call(cmdSync, nil)
	return ret != 0, err
}
