// Package run implements the run command, which runs an emulator or test
// harness and mirrors its console.
package run

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/aymanbagabas/go-pty"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ExitError is returned if the program reported a failure on its console.
type ExitError struct {
	Line string
}

func (e *ExitError) Error() string { return "program failed: " + e.Line }

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <command> [file]...",
		Short: "Run an emulator and watch its console",
		Long: `Runs command on a pseudo terminal, so the program line buffers its output,
and logs every console line. The program is stopped after it printed PASS, FAIL,
a panic or a fatal error. The command fails unless the program printed PASS or
exited successfully.

command is split like a shell would, the remaining arguments are appended.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			argv, err := shellquote.Split(args[0])
			if err != nil {
				return err
			}
			return Run(zerolog.Ctx(cmd.Context()), append(argv, args[1:]...))
		},
	}
	return cmd
}

// Run executes argv on a pty and scans its output for test results.
func Run(log *zerolog.Logger, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("run: empty command")
	}

	p, err := pty.New()
	if err != nil {
		return err
	}
	defer p.Close()

	cmd := p.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	sigintr := make(chan os.Signal, 1)
	signal.Notify(sigintr, os.Interrupt)
	defer signal.Stop(sigintr)

	stop := func() {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			log.Debug().Err(err).Msg("interrupt")
		}
	}
	go func() {
		if _, ok := <-sigintr; ok {
			stop()
		}
	}()

	// The pty doesn't necessarily report EOF once the program exited, so close
	// it after the remaining output had a chance to be read.
	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		time.Sleep(100 * time.Millisecond)
		p.Close()
		waitErr <- err
	}()

	var result error
	exiting := false
	scanner := bufio.NewScanner(p)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		log.Info().Msg(line)
		if exiting {
			continue
		}
		switch {
		case strings.HasPrefix(line, "fatal error:"), strings.HasPrefix(line, "panic:"),
			strings.HasPrefix(line, "halt:"), line == "FAIL":
			result = &ExitError{Line: line}
		case line == "PASS":
		default:
			continue
		}
		exiting = true
		// give the program time to print the stacktrace
		time.AfterFunc(500*time.Millisecond, stop)
	}

	werr := <-waitErr
	if result != nil {
		return result
	}
	if exiting {
		return nil
	}
	return werr
}
