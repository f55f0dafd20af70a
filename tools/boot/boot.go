// Package boot implements the boot command, which brings up an IOP.
package boot

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/joomcode/errorx"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clktmr/ps2/config"
	"github.com/clktmr/ps2/drivers/bringup"
	"github.com/clktmr/ps2/drivers/irxfs"
	"github.com/clktmr/ps2/drivers/modules"
	"github.com/clktmr/ps2/iop/sif"
	"github.com/clktmr/ps2/iop/sim"
)

var (
	withUSB, withHDD, quiet bool

	configFile string
	modulesDir string

	useSim     bool
	device     string
	execCmd    string
	massImage  string
	enumDelay  int
	resetDelay int
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Patch the IOP and load the IRX modules",
		Long: `Applies the SBV patches and loads the required IRX modules, optionally
followed by the USB mass storage and HDD drivers. Exactly one of --sim,
--device or --exec selects the IOP to talk to.`,
		Args: cobra.NoArgs,
		RunE: run,
	}

	f := cmd.Flags()
	f.BoolVar(&withUSB, "usb", false, "load USB mass storage drivers")
	f.BoolVar(&withHDD, "hdd", false, "load HDD drivers")
	f.BoolVar(&quiet, "quiet", false, "suppress progress messages")
	f.StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	f.StringVarP(&modulesDir, "modules", "m", "", "directory or irxfs archive with IRX modules, overrides config")
	f.BoolVar(&useSim, "sim", false, "use an in-process simulated IOP")
	f.StringVar(&device, "device", "", "serial device connected to the IOP")
	f.StringVar(&execCmd, "exec", "", "command speaking the link protocol on stdin/stdout")
	f.StringVar(&massImage, "mass-image", "", "FAT image backing mass: of the simulated IOP")
	f.IntVar(&enumDelay, "enum-delay", 0, "probes until mass: of the simulated IOP is ready")
	f.IntVar(&resetDelay, "reset-delay", 0, "syncs until a reset of the simulated IOP completes")
	cmd.MarkFlagsMutuallyExclusive("sim", "device", "exec")
	cmd.MarkFlagsOneRequired("sim", "device", "exec")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	log := zerolog.Ctx(cmd.Context())

	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFile(configFile); err != nil {
			return err
		}
	}
	if modulesDir != "" {
		cfg.Modules = modulesDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	images, closeImages, err := OpenImages(cfg.Modules)
	if err != nil {
		return err
	}
	defer closeImages()
	reportImages(*log, images, cfg)

	iop, closeIOP, err := connect(*log)
	if err != nil {
		return err
	}
	defer closeIOP()

	l := bringup.New(cfg, images, iop, bringup.WithLogger(*log))
	l.MustLoadAll(withUSB, withHDD, quiet)

	if s, ok := iop.(*sim.IOP); ok {
		log.Info().Strs("resident", s.Resident()).Msg("simulated IOP")
	}
	return nil
}

// OpenImages returns a catalog of the modules in dir, which is either a
// directory or an irxfs archive.
func OpenImages(dir string) (*modules.Catalog, func() error, error) {
	if dir == "" {
		dir = "."
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return modules.NewCatalog(os.DirFS(dir)), func() error { return nil }, nil
	}

	f, err := os.Open(dir)
	if err != nil {
		return nil, nil, err
	}
	fsys, err := irxfs.Read(f)
	if err != nil {
		f.Close()
		return nil, nil, errorx.Decorate(err, "%s", dir)
	}
	return modules.NewCatalog(fsys), f.Close, nil
}

// reportImages logs which modules of the selected batches can't be resolved.
// The bring-up still runs, it halts at the first of them.
func reportImages(log zerolog.Logger, images *modules.Catalog, cfg config.Config) {
	if names, err := images.Names(); err == nil {
		log.Debug().Strs("modules", names).Msg("available")
	}

	batches := []modules.Batch{modules.Required(), modules.AudioServer()}
	if withUSB {
		if usb, err := modules.USB(cfg.USB); err == nil {
			batches = append(batches, usb)
		}
	}
	if withHDD {
		batches = append(batches, modules.HDD(cfg.LegacyATA))
	}
	if missing := images.Missing(batches...); len(missing) > 0 {
		log.Error().Strs("missing", missing).Msg("modules can't be resolved")
	}
}

type link struct {
	io.Reader
	io.Writer
}

func connect(log zerolog.Logger) (bringup.IOP, func() error, error) {
	switch {
	case useSim:
		opts := []sim.Option{
			sim.WithEnumerationDelay(enumDelay),
			sim.WithResetDelay(resetDelay),
			sim.WithLogger(log.With().Str("iop", "sim").Logger()),
		}
		if massImage != "" {
			opts = append(opts, sim.WithMassImage(massImage))
		}
		return sim.New(opts...), func() error { return nil }, nil

	case device != "":
		f, err := os.OpenFile(device, os.O_RDWR, 0)
		if err != nil {
			return nil, nil, err
		}
		return sif.NewClient(f), f.Close, nil

	case execCmd != "":
		argv, err := shellquote.Split(execCmd)
		if err != nil {
			return nil, nil, err
		}
		if len(argv) == 0 {
			return nil, nil, fmt.Errorf("--exec: empty command")
		}
		c := exec.Command(argv[0], argv[1:]...)
		c.Stderr = os.Stderr
		w, err := c.StdinPipe()
		if err != nil {
			return nil, nil, err
		}
		r, err := c.StdoutPipe()
		if err != nil {
			return nil, nil, err
		}
		if err := c.Start(); err != nil {
			return nil, nil, err
		}
		log.Debug().Strs("argv", argv).Int("pid", c.Process.Pid).Msg("started link process")
		closer := func() error {
			w.Close()
			return c.Wait()
		}
		return sif.NewClient(link{r, w}), closer, nil
	}
	return nil, nil, fmt.Errorf("no IOP selected")
}
