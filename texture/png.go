package texture

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"math/bits"
	"path"
	"strings"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/draw"
)

// PNGLoader decodes PNG files.
type PNGLoader struct {
	// Bpp of the resulting texture, 32 if zero.
	Bpp Bpp
	// PowerOfTwo scales the image up to the next power of two in each
	// dimension, which the GS requires for textures.
	PowerOfTwo bool
	// Dither enables Floyd-Steinberg error diffusion for palettized
	// textures.
	Dither bool
}

var _ Loader = PNGLoader{}

func (l PNGLoader) Load(fsys fs.FS, name string) (*BuilderData, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	base := path.Base(name)
	return l.Convert(strings.TrimSuffix(base, path.Ext(base)), src)
}

// Convert turns an already decoded image into a texture.
func (l PNGLoader) Convert(name string, src image.Image) (*BuilderData, error) {
	bpp := l.Bpp
	if bpp == 0 {
		bpp = Bpp32
	}
	if !bpp.Valid() {
		return nil, fmt.Errorf("unsupported bpp %d", bpp)
	}

	if l.PowerOfTwo {
		src = scalePowerOfTwo(src)
	}
	rect := image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy())

	d := &BuilderData{
		Name:   name,
		Width:  rect.Dx(),
		Height: rect.Dy(),
		Bpp:    bpp,
	}

	switch bpp {
	case Bpp32:
		dst := image.NewNRGBA(rect)
		draw.Draw(dst, rect, src, src.Bounds().Min, draw.Src)
		d.Data = dst.Pix
	case Bpp24:
		dst := image.NewNRGBA(rect)
		draw.Draw(dst, rect, src, src.Bounds().Min, draw.Src)
		d.Data = make([]byte, 0, Size(d.Width, d.Height, bpp))
		for i := 0; i < len(dst.Pix); i += 4 {
			d.Data = append(d.Data, dst.Pix[i:i+3]...)
		}
	case Bpp8, Bpp4:
		n := bpp.PaletteSize()
		q := quantize.MedianCutQuantizer{}
		p := q.Quantize(make(color.Palette, 0, n), src)

		dst := image.NewPaletted(rect, p)
		var drawer draw.Drawer = draw.Src
		if l.Dither {
			drawer = draw.FloydSteinberg
		}
		drawer.Draw(dst, rect, src, src.Bounds().Min)

		d.Palette = make([]byte, 4*n)
		for i, c := range p {
			nc := color.NRGBAModel.Convert(c).(color.NRGBA)
			copy(d.Palette[4*i:], []byte{nc.R, nc.G, nc.B, nc.A})
		}
		if bpp == Bpp8 {
			d.Data = dst.Pix
		} else {
			d.Data = make([]byte, Size(d.Width, d.Height, bpp))
			for i, idx := range dst.Pix {
				d.Data[i/2] |= (idx & 0xf) << (4 * (i % 2))
			}
		}
	}
	return d, nil
}

func nextPowerOfTwo(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}

func scalePowerOfTwo(src image.Image) image.Image {
	b := src.Bounds()
	w, h := nextPowerOfTwo(b.Dx()), nextPowerOfTwo(b.Dy())
	if w == b.Dx() && h == b.Dy() {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
