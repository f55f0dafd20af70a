// Package mkmass implements the mkmass command, which creates FAT images
// usable as the mass: device of the simulated IOP.
package mkmass

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clktmr/ps2/iop/sim"
)

var (
	output string
	size   int64
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkmass [flags] <file[=path]>...",
		Short: "Create a FAT32 image for the simulated mass: device",
		Long: `Creates a FAT32 formatted disk image holding the given files. A file is
stored at the root of the image unless a destination path is given after '='.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return MakeImage(zerolog.Ctx(cmd.Context()), output, size, args...)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "mass.img", "image to create")
	cmd.Flags().Int64Var(&size, "size", sim.DefaultMassSize, "image size in bytes")
	return cmd
}

// MakeImage creates the image out from files, each of the form src[=dst].
func MakeImage(log *zerolog.Logger, out string, size int64, files ...string) error {
	contents := make(map[string]io.Reader, len(files))
	for _, arg := range files {
		src, dst, ok := strings.Cut(arg, "=")
		if !ok {
			dst = filepath.Base(src)
		}
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		contents[dst] = f
		log.Debug().Str("src", src).Str("dst", dst).Msg("adding")
	}

	if err := sim.CreateMassImage(out, size, contents); err != nil {
		os.Remove(out)
		return err
	}
	log.Info().Int("files", len(files)).Str("image", out).Msg("created")
	return nil
}
