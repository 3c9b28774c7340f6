package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/srediag/telemetry-shm/internal/config"
	"github.com/srediag/telemetry-shm/pkg/shm"
)

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or replace the settings block",
	}
	cmd.AddCommand(newSettingsGetCommand(a), newSettingsSetCommand(a))
	return cmd
}

func newSettingsGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the settings block as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.openOptions()
			if err != nil {
				return err
			}
			c, err := shm.Open(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer c.Close()

			s, err := c.ReadSettings(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
}

func newSettingsSetCommand(a *app) *cobra.Command {
	var (
		file string
		sets []string
	)
	cmd := &cobra.Command{
		Use:   "set [key=value...]",
		Short: "Replace the settings block",
		Long: `Replace the whole settings block. Values start from the defaults, then
the --file YAML is applied, then each key=value argument, e.g.

  shmctl settings set esp_enabled=true glow_visible.g=0.8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.ParseSettings(file, append(sets, args...))
			if err != nil {
				return err
			}
			opts, err := a.openOptions()
			if err != nil {
				return err
			}
			c, err := shm.Open(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.WriteSettings(cmd.Context(), s); err != nil {
				return err
			}
			a.log.Info("settings written", "path", c.Path())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML settings file")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "key=value override (repeatable)")
	return cmd
}
