// Package texture decodes images into raw texture data.
//
// The loaders only hand back a buffer and its metadata, uploading to the GS
// is up to the renderer.
package texture

import (
	"fmt"
	"io/fs"
)

// Bpp is the number of bits per pixel of the texture data.
type Bpp uint8

const (
	Bpp4  Bpp = 4  // 16 color palette
	Bpp8  Bpp = 8  // 256 color palette
	Bpp24 Bpp = 24 // RGB
	Bpp32 Bpp = 32 // RGBA
)

func (b Bpp) Valid() bool {
	return b == Bpp4 || b == Bpp8 || b == Bpp24 || b == Bpp32
}

// PaletteSize returns the number of palette entries, or 0 for direct color.
func (b Bpp) PaletteSize() int {
	switch b {
	case Bpp4:
		return 16
	case Bpp8:
		return 256
	}
	return 0
}

// BuilderData is a decoded texture.
type BuilderData struct {
	Name          string
	Width, Height int
	Bpp           Bpp

	// Data holds the pixels row by row. In 4 bpp textures the first pixel
	// is stored in the low nibble.
	Data []byte
	// Palette holds RGBA entries for palettized textures.
	Palette []byte
}

func (d *BuilderData) String() string {
	return fmt.Sprintf("%s %dx%d %dbpp", d.Name, d.Width, d.Height, d.Bpp)
}

// Loader loads textures from a filesystem, e.g. a mass storage device.
type Loader interface {
	Load(fsys fs.FS, name string) (*BuilderData, error)
}

// Size returns the size in bytes of a width x height texture.
func Size(width, height int, bpp Bpp) int {
	return (width*height*int(bpp) + 7) / 8
}
