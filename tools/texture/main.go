// Package texture implements the texture command, which converts PNG images
// to textures.
package texture

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clktmr/ps2/texture"
)

var (
	bpp        uint8
	dither     bool
	powerOfTwo bool
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "texture [flags] <image.png>...",
		Short: "Convert PNG images to textures",
		Long: `Converts PNG images to textures. The result is written next to each image
with the extension replaced by .tex.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := texture.PNGLoader{
				Bpp:        texture.Bpp(bpp),
				Dither:     dither,
				PowerOfTwo: powerOfTwo,
			}
			for _, name := range args {
				if err := Convert(zerolog.Ctx(cmd.Context()), loader, name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Uint8Var(&bpp, "bpp", 32, "bits per pixel: 4 | 8 | 24 | 32")
	f.BoolVar(&dither, "dither", false, "enable Floyd-Steinberg error diffusion")
	f.BoolVar(&powerOfTwo, "pot", false, "scale to power of two dimensions")
	return cmd
}

// Convert loads imagefile with loader and stores the texture next to it.
func Convert(log *zerolog.Logger, loader texture.Loader, imagefile string) error {
	d, err := loader.Load(os.DirFS(filepath.Dir(imagefile)), filepath.Base(imagefile))
	if err != nil {
		return err
	}

	outfile := strings.TrimSuffix(imagefile, filepath.Ext(imagefile)) + ".tex"
	w, err := os.Create(outfile)
	if err != nil {
		return err
	}
	if err := d.Store(w); err != nil {
		w.Close()
		return err
	}
	log.Info().Stringer("texture", d).Str("file", outfile).Msg("converted")
	return w.Close()
}
