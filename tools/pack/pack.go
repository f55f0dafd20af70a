// Package pack implements the pack command, which bundles IRX modules into an
// irxfs archive.
package pack

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clktmr/ps2/drivers/irxfs"
	"github.com/clktmr/ps2/iop/irx"
)

var output string

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack [flags] <module.irx>...",
		Short: "Create an irxfs archive from IRX modules",
		Long: `Creates an irxfs archive holding the given IRX modules. Modules are named
after their file name without the .irx extension.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Pack(zerolog.Ctx(cmd.Context()), output, args...)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "modules.irxa", "archive to create")
	return cmd
}

// Pack writes the modules in files to an archive at out.
func Pack(log *zerolog.Logger, out string, files ...string) error {
	images := make([]*irx.Image, 0, len(files))
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		img := irx.NewImage(strings.TrimSuffix(filepath.Base(name), ".irx"), data)
		log.Debug().Stringer("image", img).Msg("adding")
		images = append(images, img)
	}

	archive, err := irxfs.Bytes(images...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, archive, 0o644); err != nil {
		return err
	}
	log.Info().Int("modules", len(images)).Str("archive", out).Msg("packed")
	return nil
}
