// Package sif implements the RPC link between the host and the IOP.
//
// Requests and replies are framed the way UNFLoader frames its USB packets: a
// magic, a command byte and a 24 bit length, followed by the payload and a
// footer. A CRC-8 over command, length and payload is inserted before the
// footer, since the link can be a plain serial line.
package sif

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/joomcode/errorx"
	"github.com/sigurn/crc8"

	"github.com/clktmr/ps2/iop/irx"
)

const (
	magic  = "SIF@"
	footer = "CMPH"

	// MaxPayload is the largest payload a single frame can carry.
	MaxPayload = 1<<24 - 1
)

type command uint8

const (
	cmdPatch command = iota + 1
	cmdExec
	cmdStat
	cmdReset
	cmdSync
	cmdError

	replyFlag command = 0x80
)

var (
	ErrNamespace     = errorx.NewNamespace("sif")
	ProtocolError    = ErrNamespace.NewType("protocol_error")
	ChecksumMismatch = ProtocolError.NewSubtype("checksum_mismatch")
)

var frameCRC8 = crc8.MakeTable(crc8.CRC8)

func frameChecksum(hdr []byte, payload []byte) uint8 {
	csum := crc8.Init(frameCRC8)
	csum = crc8.Update(csum, hdr, frameCRC8)
	csum = crc8.Update(csum, payload, frameCRC8)
	return crc8.Complete(csum, frameCRC8)
}

// writeFrame writes a single frame in one Write call, so that concurrent
// writers to the same link never interleave.
func writeFrame(w io.Writer, cmd command, payload []byte) error {
	s := len(payload)
	if s > MaxPayload {
		return ProtocolError.New("payload too large: %d bytes", s)
	}
	hdr := []byte{byte(cmd), byte(s >> 16), byte(s >> 8), byte(s)}

	buf := make([]byte, 0, len(magic)+len(hdr)+s+1+len(footer))
	buf = append(buf, magic...)
	buf = append(buf, hdr...)
	buf = append(buf, payload...)
	buf = append(buf, frameChecksum(hdr, payload))
	buf = append(buf, footer...)

	_, err := w.Write(buf)
	return err
}

// readFrame reads the next frame. It returns io.EOF only if the link was
// closed cleanly between two frames.
func readFrame(r io.Reader) (cmd command, payload []byte, err error) {
	var hdr [len(magic) + 4]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return
	}
	if string(hdr[:len(magic)]) != magic {
		return 0, nil, ProtocolError.New("invalid magic %q", hdr[:len(magic)])
	}
	cmdlen := hdr[len(magic):]
	cmd = command(cmdlen[0])
	s := int(cmdlen[1])<<16 | int(cmdlen[2])<<8 | int(cmdlen[3])

	payload = make([]byte, s)
	if _, err = io.ReadFull(r, payload); err != nil {
		return 0, nil, unexpectedEOF(err)
	}

	var tail [1 + len(footer)]byte
	if _, err = io.ReadFull(r, tail[:]); err != nil {
		return 0, nil, unexpectedEOF(err)
	}
	if string(tail[1:]) != footer {
		return 0, nil, ProtocolError.New("invalid footer %q", tail[1:])
	}
	if tail[0] != frameChecksum(cmdlen, payload) {
		return 0, nil, ChecksumMismatch.New("frame checksum mismatch for command %#x", uint8(cmd))
	}
	return cmd, payload, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// payload encoding helpers, all big endian

type encoder struct{ bytes.Buffer }

func (e *encoder) putU8(v uint8) { e.WriteByte(v) }

func (e *encoder) putBytes32(p []byte) {
	binary.Write(&e.Buffer, binary.BigEndian, uint32(len(p)))
	e.Write(p)
}

func (e *encoder) putI32(v int32) {
	binary.Write(&e.Buffer, binary.BigEndian, v)
}

type decoder struct {
	r   *bytes.Reader
	err error
}

func newDecoder(p []byte) *decoder { return &decoder{r: bytes.NewReader(p)} }

func (d *decoder) read(data any) {
	if d.err != nil {
		return
	}
	d.err = binary.Read(d.r, binary.BigEndian, data)
}

func (d *decoder) getU8() (v uint8) { d.read(&v); return }

func (d *decoder) getI32() (v int32) { d.read(&v); return }

func (d *decoder) getBytes32() []byte {
	var n uint32
	d.read(&n)
	return d.bytesN(int(n))
}

// getImage decodes an image stored with irx.Image.Store.
func (d *decoder) getImage() *irx.Image {
	if d.err != nil {
		return nil
	}
	img, err := irx.Load(d.r)
	d.err = err
	return img
}

func (d *decoder) bytesN(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n > d.r.Len() {
		d.err = io.ErrUnexpectedEOF
		return nil
	}
	p := make([]byte, n)
	d.read(p)
	return p
}

// done returns the first decoding error, or a protocol error if there are
// trailing bytes.
func (d *decoder) done() error {
	if d.err != nil {
		return ProtocolError.Wrap(d.err, "malformed payload")
	}
	if d.r.Len() != 0 {
		return ProtocolError.New("%d trailing bytes in payload", d.r.Len())
	}
	return nil
}
