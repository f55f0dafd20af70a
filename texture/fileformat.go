package texture

import (
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

type header struct {
	Bpp           Bpp
	Width, Height uint16
	NameLen       uint16
}

// Store writes the texture in a compact zlib compressed format, which can be
// read back with Load.
func (d *BuilderData) Store(w io.Writer) error {
	if d.Width > 0xffff || d.Height > 0xffff || len(d.Name) > 0xffff {
		return errors.New("texture too large")
	}
	if !d.Bpp.Valid() {
		return fmt.Errorf("unsupported bpp %d", d.Bpp)
	}
	if n := Size(d.Width, d.Height, d.Bpp); len(d.Data) != n {
		return fmt.Errorf("texture data has %d bytes, want %d", len(d.Data), n)
	}
	if n := 4 * d.Bpp.PaletteSize(); len(d.Palette) != n {
		return fmt.Errorf("palette has %d bytes, want %d", len(d.Palette), n)
	}
	hdr := header{
		Bpp:     d.Bpp,
		Width:   uint16(d.Width),
		Height:  uint16(d.Height),
		NameLen: uint16(len(d.Name)),
	}

	zw := zlib.NewWriter(w)
	err := binary.Write(zw, binary.BigEndian, hdr)
	if err == nil {
		_, err = zw.Write([]byte(d.Name))
	}
	if err == nil {
		_, err = zw.Write(d.Data)
	}
	if err == nil {
		_, err = zw.Write(d.Palette)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	return err
}

func Load(r io.Reader) (*BuilderData, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var hdr header
	if err := binary.Read(zr, binary.BigEndian, &hdr); err != nil {
		return nil, err
	}
	if !hdr.Bpp.Valid() {
		return nil, errors.New("unsupported bpp")
	}
	d := &BuilderData{
		Width:  int(hdr.Width),
		Height: int(hdr.Height),
		Bpp:    hdr.Bpp,
	}
	name := make([]byte, hdr.NameLen)
	d.Data = make([]byte, Size(d.Width, d.Height, d.Bpp))
	d.Palette = make([]byte, 4*d.Bpp.PaletteSize())
	for _, p := range [][]byte{name, d.Data, d.Palette} {
		if _, err := io.ReadFull(zr, p); err != nil {
			return nil, err
		}
	}
	d.Name = string(name)
	if len(d.Palette) == 0 {
		d.Palette = nil
	}
	return d, nil
}
