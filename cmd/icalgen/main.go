package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"icalgen/internal/config"
	appLog "icalgen/internal/log"
)

const version = "0.1.0"

// rootFlags holds persistent flag values shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

var (
	flags rootFlags
	conf  *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "icalgen",
	Short: "Turn a weekly timetable screenshot into an iCalendar file",
	Long: `icalgen reads a weekly timetable (an image, a web page or OCR text),
finds the class slots in it and writes every occurrence between two dates
to an .ics file that calendar applications can import.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(flags.configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if flags.logLevel != "" {
			level = flags.logLevel
		}
		appLog.Configure(level, cfg.Log.Format)
		appLog.Debug("effective config",
			"config_path", flags.configPath,
			"timezone", cfg.Timezone,
			"slot_minutes", cfg.SlotMinutes,
			"day_count", len(cfg.Days),
			"ocr_languages", cfg.OCR.Languages,
			"job_count", len(cfg.Watch.Jobs),
		)
		conf = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "./icalgen.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
}

// loadConfig reads the config file. A missing file falls back to defaults
// unless the path was given explicitly, in which case it is created.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg := config.DefaultConfig()
			cfg.Normalize()
			return cfg, nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	appLog.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
