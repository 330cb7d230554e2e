package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/stratoflight/telemlog/internal/boot"
	"github.com/stratoflight/telemlog/internal/cliconfig"
	"github.com/stratoflight/telemlog/internal/dispatch"
	"github.com/stratoflight/telemlog/internal/watcher"
	"github.com/stratoflight/telemlog/internal/worker"
	"github.com/stratoflight/telemlog/pkg/log"
	"github.com/stratoflight/telemlog/pkg/telemlog"
)

const longHelp = `telemlogd is the onboard telemetry datalogger: it persists fixed-format
binary records per subsystem to a size-bounded, crash-tolerant log store
and keeps running across power cycles.

Modules are declared in the config file; each gets one worker that logs on
its own cadence. Size limits can be edited in the config file while the
daemon runs.`

const exampleUsage = `  telemlogd --config /etc/telemlog/config.toml
  telemlogd --log-root /data/log --once`

// pingOpcode is the built-in self-test command queued at startup.
const pingOpcode dispatch.Opcode = 0

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "telemlogd",
		Short:   "Size-bounded telemetry datalogger for onboard subsystems",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				if err := cliconfig.ApplyFile(&cfg, cfgFile, changed); err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			if err := cliconfig.ApplyEnv(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg, cfgFile)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&cfgPath, "config", "c", "", "path to config file (default $HOME/.telemlog/config.toml)")
	flags.StringVar(&cfg.LogRoot, "log-root", cfg.LogRoot, "root directory for module logs")
	flags.StringVar(&cfg.BootFile, "boot-file", cfg.BootFile, "path of the persistent boot counter")
	flags.BoolVar(&cfg.Once, "once", cfg.Once, "log one record per module and exit")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg cliconfig.Config, cfgFile string) error {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
	logger := log.NewZerologAdapterWithLogger(zl)

	// An unreadable boot counter is the one fatal condition at startup;
	// everything after it is logged best-effort.
	bootCount, err := boot.Next(cfg.BootFile)
	if err != nil {
		return fmt.Errorf("boot counter: %w", err)
	}
	logger.Info("boot counter read", log.Int("boot_count", bootCount))

	store, err := telemlog.Open(cfg.LogRoot, telemlog.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open log store: %w", err)
	}

	// Subsystem command path. Real integrations enqueue driver commands
	// here; a ping is queued at startup as a self-test.
	commands := dispatch.NewDispatcher(dispatch.NewQueue(0))
	commands.Register(pingOpcode, func(dispatch.Command) error {
		logger.Info("command self-test ping")
		return nil
	})
	if err := commands.Queue().Enqueue(dispatch.Command{Op: pingOpcode}); err != nil {
		logger.Warn("self-test ping not queued", log.Err(err))
	}

	specs := make([]worker.ModuleSpec, len(cfg.Modules))
	for i, mc := range cfg.Modules {
		specs[i] = worker.ModuleSpec{
			Name:       mc.Name,
			RecordSize: mc.RecordSize,
			Interval:   mc.Interval,
			Sample:     heartbeatSampler(bootCount, mc.RecordSize),
		}
	}
	if len(specs) > 0 {
		specs[0].Commands = commands
	}

	sup := worker.NewSupervisor(store, logger, specs)

	if cfg.Once {
		return sup.RunOnce()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Start(ctx); err != nil {
		return err
	}
	applyLimitOverrides(store, cfg, logger)

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		w := watcher.New(cfgFile, store, logger)
		if err := w.Start(ctx); err != nil {
			logger.Warn("settings watcher not started", log.Err(err))
		} else {
			defer w.Stop()
		}
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return sup.Stop()
}

// applyLimitOverrides pushes configured size limits onto freshly registered
// modules. Rejected values are logged and the persisted limits stand.
func applyLimitOverrides(store *telemlog.Store, cfg cliconfig.Config, logger log.Logger) {
	for _, mc := range cfg.Modules {
		m, err := store.Lookup(mc.Name)
		if err != nil {
			continue
		}
		if mc.MaxFileSize > 0 {
			if err := m.EditSetting(telemlog.MaxFileSize, mc.MaxFileSize); err != nil {
				logger.Warn("max_file_size override rejected", log.String("module", mc.Name), log.Err(err))
			}
		}
		if mc.MaxDirSize > 0 {
			if err := m.EditSetting(telemlog.MaxDirSize, mc.MaxDirSize); err != nil {
				logger.Warn("max_dir_size override rejected", log.String("module", mc.Name), log.Err(err))
			}
		}
	}
}

// heartbeatSampler is the daemon's built-in telemetry source: boot count,
// sequence number and capture time, truncated to the record size.
// Subsystem integrations replace it through the worker API.
func heartbeatSampler(bootCount, recordSize int) worker.SampleFunc {
	var seq atomic.Uint64
	return func() ([]byte, error) {
		buf := make([]byte, 20)
		binary.BigEndian.PutUint32(buf[0:4], uint32(bootCount))
		binary.BigEndian.PutUint64(buf[4:12], seq.Add(1))
		binary.BigEndian.PutUint64(buf[12:20], uint64(time.Now().UnixNano()))
		if recordSize < len(buf) {
			buf = buf[:recordSize]
		}
		return buf, nil
	}
}
