package sif

import (
	"io"

	"github.com/clktmr/ps2/iop/sbv"
)

// Serve answers requests read from rw with s until the link is closed. It
// returns nil if the link was closed between two requests.
func Serve(rw io.ReadWriter, s Substrate) error {
	for {
		cmd, payload, err := readFrame(rw)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		status, err := dispatch(s, cmd, payload)
		if err != nil {
			err = writeFrame(rw, cmdError|replyFlag, []byte(err.Error()))
		} else {
			var e encoder
			e.putI32(status)
			err = writeFrame(rw, cmd|replyFlag, e.Bytes())
		}
		if err != nil {
			return err
		}
	}
}

func dispatch(s Substrate, cmd command, payload []byte) (int32, error) {
	d := newDecoder(payload)
	switch cmd {
	case cmdPatch:
		p := sbv.Patch(d.getU8())
		if err := d.done(); err != nil {
			return 0, err
		}
		return s.ApplyPatch(p)
	case cmdExec:
		args := d.getBytes32()
		img := d.getImage()
		if err := d.done(); err != nil {
			return 0, err
		}
		return s.ExecModuleBuffer(img.Name, img.Data, args)
	case cmdStat:
		return s.Stat(string(payload))
	case cmdReset:
		return boolStatus(s.Reset())
	case cmdSync:
		return boolStatus(s.Sync())
	}
	return 0, ProtocolError.New("unknown command %#x", uint8(cmd))
}

func boolStatus(ok bool, err error) (int32, error) {
	if ok {
		return 1, err
	}
	return 0, err
}
