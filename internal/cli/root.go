// Package cli implements the shmctl command tree.
package cli

import (
	"errors"
	"io/fs"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/srediag/telemetry-shm/internal/config"
	"github.com/srediag/telemetry-shm/internal/logging"
	"github.com/srediag/telemetry-shm/pkg/shm"
)

// app carries what PersistentPreRunE resolved to the subcommands.
type app struct {
	configFile string
	envFile    string
	path       string
	wordBits   int
	logLevel   string

	cfg config.Config
	log hclog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "shmctl",
		Short: "Inspect and drive the shared telemetry region",
		Long: `shmctl attaches to the shared-memory region written by the telemetry
producer. It can dump the region, print its layout, read and write the
settings block, and serve the region over HTTP.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	pf.StringVar(&a.path, "path", "", "region object path (default /dev/shm/apex_dma_shared)")
	pf.IntVar(&a.wordBits, "word-bits", 0, "producer counter width, 32 or 64")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newStatusCommand(a),
		newLayoutCommand(a),
		newSettingsCommand(a),
		newServeCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	cfg, err := config.NewLoader(config.WithConfigFile(a.configFile)).Load()
	if err != nil {
		return err
	}
	if a.path != "" {
		cfg.Region.Path = a.path
	}
	if a.wordBits != 0 {
		cfg.Region.WordBits = a.wordBits
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if _, err := cfg.Region.Layout(); err != nil {
		return err
	}
	cfg.Log.Output = cmd.ErrOrStderr()
	a.cfg = cfg
	a.log = logging.New("shmctl", cfg.Log)
	return nil
}

func (a *app) openOptions() (shm.OpenOptions, error) {
	opts, err := a.cfg.Region.OpenOptions()
	if err != nil {
		return opts, err
	}
	opts.Logger = a.log.Named("shm")
	return opts, nil
}
