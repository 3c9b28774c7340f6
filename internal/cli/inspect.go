package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/srediag/telemetry-shm/pkg/layout"
	"github.com/srediag/telemetry-shm/pkg/shm"
)

func newStatusCommand(a *app) *cobra.Command {
	var usage bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Dump the region header, settings and live records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.openOptions()
			if err != nil {
				return err
			}
			path := opts.ResolvePath()
			out := cmd.OutOrStdout()
			if err := shm.DebugRegionDetail(path, opts.Layout, out); err != nil {
				if errors.Is(err, layout.ErrShortBuffer) {
					return &shm.IoError{Op: "decode", Err: err}
				}
				return &shm.ConnectionError{Path: path, Err: err}
			}
			if !usage {
				return nil
			}
			u, err := shm.RegionUsage(path)
			if err != nil {
				a.log.Warn("filesystem usage unavailable", "path", path, "error", err)
				return nil
			}
			_, err = fmt.Fprintf(out, "fs:%s used:%d free:%d total:%d (%.1f%%)\n",
				u.Path, u.Used, u.Free, u.Total, u.UsedPercent)
			return err
		},
	}
	cmd.Flags().BoolVar(&usage, "usage", true, "report usage of the backing filesystem")
	return cmd
}

func newLayoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Print the field offsets of the region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lay, err := a.cfg.Region.Layout()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "FIELD\tOFFSET\tWIDTH\n")
			for _, f := range lay.Fields() {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", f.Name, f.Offset, f.Width)
			}
			fmt.Fprintf(tw, "settings\t%d\t%d\n", lay.SettingsOffset(), lay.PlayersOffset()-lay.SettingsOffset())
			fmt.Fprintf(tw, "total\t0\t%d\n", lay.Size())
			return tw.Flush()
		},
	}
}
