// Package irx holds IOP module images and the primitive to inject them.
//
// The content of an image is opaque. It's a relocatable IRX as produced by the
// platform SDK and only the IOP's loadcore understands it.
package irx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sigurn/crc8"
)

var ErrChecksum = errors.New("irx: checksum mismatch")

var imageCRC8 = crc8.MakeTable(crc8.CRC8)

// Image is a named module image. Identity is the name.
type Image struct {
	Name string
	Data []byte
}

func NewImage(name string, data []byte) *Image {
	return &Image{Name: name, Data: data}
}

// Checksum returns the CRC-8 of the image data. It's meant for identifying
// images in logs, not as a security measure.
func (img *Image) Checksum() uint8 {
	return crc8.Checksum(img.Data, imageCRC8)
}

func (img *Image) String() string {
	return fmt.Sprintf("%s (%d bytes, crc %02x)", img.Name, len(img.Data), img.Checksum())
}

// Limits enforced by Load. The IOP has 2 MiB of RAM, no module is larger.
const (
	MaxNameLen = 255
	MaxSize    = 2 << 20
)

// Load reads an image previously written by Store.
func Load(r io.Reader) (img *Image, err error) {
	load := func(data any) {
		if err != nil {
			return
		}
		err = binary.Read(r, binary.BigEndian, data)
	}

	var nameLen, size uint32
	load(&nameLen)
	if err == nil && nameLen > MaxNameLen {
		return nil, fmt.Errorf("irx: name length %d exceeds %d", nameLen, MaxNameLen)
	}
	name := make([]byte, nameLen)
	load(name)
	load(&size)
	if err == nil && size > MaxSize {
		return nil, fmt.Errorf("irx: image size %d exceeds %d", size, MaxSize)
	}
	img = &Image{Name: string(name)}
	if err == nil {
		img.Data = make([]byte, size)
	}
	load(img.Data)

	var csum uint8
	load(&csum)
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if csum != img.Checksum() {
		return nil, ErrChecksum
	}
	return img, nil
}

// unexpectedEOF reports a stream ending inside an image.
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Store writes the image in a length prefixed big endian encoding followed by
// the data checksum.
func (img *Image) Store(w io.Writer) (err error) {
	store := func(data any) {
		if err != nil {
			return
		}
		err = binary.Write(w, binary.BigEndian, data)
	}
	store(uint32(len(img.Name)))
	store([]byte(img.Name))
	store(uint32(len(img.Data)))
	store(img.Data)
	store(img.Checksum())
	return
}
