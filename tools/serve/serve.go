// Package serve implements the serve command, which runs a simulated IOP on
// stdin and stdout.
package serve

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clktmr/ps2/iop/sbv"
	"github.com/clktmr/ps2/iop/sif"
	"github.com/clktmr/ps2/iop/sim"
)

var (
	massImage     string
	enumDelay     int
	resetDelay    int
	failures      map[string]int64
	patchFailures []string
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a simulated IOP on stdin/stdout",
		Long: `Runs a simulated IOP answering link protocol requests read from stdin.
It is meant to be started by 'iopboot boot --exec'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := options()
			if err != nil {
				return err
			}
			rw := struct {
				io.Reader
				io.Writer
			}{cmd.InOrStdin(), cmd.OutOrStdout()}
			return Serve(cmd.Context(), rw, opts...)
		},
	}

	f := cmd.Flags()
	f.StringVar(&massImage, "mass-image", "", "FAT image backing mass:")
	f.IntVar(&enumDelay, "enum-delay", 0, "probes until mass: is ready")
	f.IntVar(&resetDelay, "reset-delay", 0, "syncs until a reset completes")
	f.StringToInt64Var(&failures, "fail", nil, "make modules fail, e.g. --fail padman=-400")
	f.StringSliceVar(&patchFailures, "fail-patch", nil, "make SBV patches fail, e.g. --fail-patch sbv_patch_fileio=-1")

	return cmd
}

func options() ([]sim.Option, error) {
	opts := []sim.Option{
		sim.WithEnumerationDelay(enumDelay),
		sim.WithResetDelay(resetDelay),
	}
	if massImage != "" {
		opts = append(opts, sim.WithMassImage(massImage))
	}
	for name, status := range failures {
		if status < math.MinInt32 || status > math.MaxInt32 {
			return nil, fmt.Errorf("--fail %s=%d: status out of range", name, status)
		}
		opts = append(opts, sim.WithFailure(name, int32(status)))
	}
	for _, s := range patchFailures {
		p, status, err := parsePatchFailure(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sim.WithPatchFailure(p, status))
	}
	return opts, nil
}

// Serve runs a simulated IOP on rw until the link is closed. It logs to the
// logger attached to ctx.
func Serve(ctx context.Context, rw io.ReadWriter, opts ...sim.Option) error {
	log := zerolog.Ctx(ctx).With().Str("iop", "sim").Logger()
	iop := sim.New(append(opts, sim.WithLogger(log))...)

	log.Info().Msg("serving")
	err := sif.Serve(rw, iop)
	log.Info().Err(err).Strs("resident", iop.Resident()).Msg("link closed")
	return err
}

func parsePatchFailure(s string) (sbv.Patch, int32, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return 0, 0, fmt.Errorf("--fail-patch %q: missing status", s)
	}
	status, err := strconv.ParseInt(value, 0, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("--fail-patch %q: %w", s, err)
	}
	for _, p := range sbv.Patches {
		if p.String() == name {
			return p, int32(status), nil
		}
	}
	return 0, 0, fmt.Errorf("--fail-patch %q: unknown patch", s)
}
