// Command iopboot brings up IOPs and prepares what they load.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clktmr/ps2/debug"
	"github.com/clktmr/ps2/tools/boot"
	"github.com/clktmr/ps2/tools/mkmass"
	"github.com/clktmr/ps2/tools/pack"
	"github.com/clktmr/ps2/tools/run"
	"github.com/clktmr/ps2/tools/serve"
	"github.com/clktmr/ps2/tools/texture"
)

func newRootCommand() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "iopboot",
		Short: "iopboot is a tool for bringing up the PS2 I/O processor.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(level)
			if err != nil {
				return err
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
				Level(lvl).With().Timestamp().Logger()
			cmd.SetContext(log.WithContext(cmd.Context()))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&level, "log-level", "info", "trace | debug | info | warn | error")

	cmd.AddCommand(
		boot.Command(),
		serve.Command(),
		pack.Command(),
		mkmass.Command(),
		texture.Command(),
		run.Command(),
	)
	return cmd
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			if h, ok := r.(debug.Halted); ok {
				fmt.Fprintln(os.Stderr, h.Error())
				os.Exit(2)
			}
			panic(r)
		}
	}()

	if err := newRootCommand().Execute(); err != nil {
		var exitErr *run.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
