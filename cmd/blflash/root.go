package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-bflb/bootloader"
	"github.com/moffa90/go-bflb/internal/config"
	"github.com/moffa90/go-bflb/internal/logging"
	"github.com/moffa90/go-bflb/serialport"
)

// bootPinHold is how long the boot strap is held around the reset pulse.
const bootPinHold = 50 * time.Millisecond

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	port       string
	baud       int
	timeout    time.Duration
	configPath string
	logLevel   string
	bootPins   bool
}

type app struct {
	flags  globalFlags
	cfg    config.Config
	logger zerolog.Logger
	out    io.Writer
}

// openTransport opens the link to the chip described by cfg.
var openTransport = func(cfg config.Config) (io.ReadWriteCloser, error) {
	port, err := serialport.Open(cfg.Port, serialport.Config{
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	if cfg.BootPins {
		if err := port.EnterBootMode(bootPinHold); err != nil {
			_ = port.Close()
			return nil, err
		}
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("reset input buffer: %w", err)
	}
	return port, nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "blflash",
		Short:         "Flash Bouffalo Lab chips through the boot ROM",
		Long:          "blflash talks to the UART loader in the boot ROM of Bouffalo Lab chips (BL616/BL618)\nto identify the chip, write firmware and read back flash.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.resolve(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.port, "port", "p", "", "serial port of the chip, e.g. /dev/ttyUSB0")
	pf.IntVar(&a.flags.baud, "baud", 0, "UART baud rate (default 115200)")
	pf.DurationVar(&a.flags.timeout, "timeout", 0, "per-read timeout (default 10s)")
	pf.StringVar(&a.flags.configPath, "config", "", "TOML config file")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: trace|debug|info|warn|error")
	pf.BoolVar(&a.flags.bootPins, "boot-pins", false, "toggle DTR/RTS to enter the boot ROM")

	root.AddCommand(
		newInfoCmd(a),
		newFlashCmd(a),
		newReadCmd(a),
		newLogCmd(a),
		newShaCmd(a),
		newResetCmd(a),
		newPortsCmd(a),
	)
	return root
}

// resolve merges defaults, the config file and explicitly set flags.
func (a *app) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.flags.configPath != "" {
		loaded, err := config.Load(a.flags.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = a.flags.port
	}
	if flags.Changed("baud") {
		if a.flags.baud <= 0 {
			return fmt.Errorf("--baud must be positive, got %d", a.flags.baud)
		}
		cfg.BaudRate = a.flags.baud
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.flags.timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if flags.Changed("boot-pins") {
		cfg.BootPins = a.flags.bootPins
	}

	logCfg := logging.DefaultConfig()
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		logCfg.Level = lvl
	} else if cfg.LogLevel != "" {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	a.cfg = cfg
	a.logger = logging.New(logCfg)
	return nil
}

// programmer opens the transport and builds a programmer for it.
func (a *app) programmer(extra ...bootloader.Option) (*bootloader.Programmer, io.Closer, error) {
	if a.cfg.Port == "" {
		return nil, nil, fmt.Errorf("no serial port given: use --port or set port in the config file")
	}

	rw, err := openTransport(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug().Str("port", a.cfg.Port).Int("baud", a.cfg.BaudRate).Msg("port opened")

	opts := []bootloader.Option{
		bootloader.WithLogger(logging.NewAdapter(a.logger)),
		bootloader.WithBaudRate(a.cfg.BaudRate),
		bootloader.WithChunkSize(a.cfg.ChunkSize),
		bootloader.WithFlashOffset(a.cfg.FlashOffset),
		bootloader.WithVerify(a.cfg.Verify),
		bootloader.WithResetAfterProgram(a.cfg.Reset),
	}
	return bootloader.New(rw, append(opts, extra...)...), rw, nil
}

// withSession opens the chip, syncs the link and runs fn.
func (a *app) withSession(ctx context.Context, fn func(ctx context.Context, prog *bootloader.Programmer) error) error {
	prog, closer, err := a.programmer()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	res, err := prog.Client().Sync(ctx)
	if err != nil {
		return err
	}
	if !res.Synced {
		a.logger.Warn().Hex("reply", res.Raw).Msg("no sync acknowledgement, continuing")
	}

	return fn(ctx, prog)
}
