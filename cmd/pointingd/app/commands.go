// Package app wires the pointingd command line. The root command runs
// the monitor daemon; subcommands print the transit schedule and build
// information.
package app

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pointingd",
	Short: "DSA-110 pointing monitor and calibrator precompute daemon",
	Long: `pointingd tracks the DSA-110 drift-scan pointing. It predicts
calibrator meridian transits from sidereal time, keeps a ranked
calibrator selection cached per declination, queues survey catalog
strip builds when the pointing changes, and writes a status snapshot
for external health checks on every tick.

With --once it prints a single status snapshot and exits. With
--http-addr it also serves an admin API with live status, transit
queries, an SSE stream, and a dashboard.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

// NewRootCmd assembles the pointingd command tree.
func NewRootCmd() *cobra.Command {
	rootCmd.AddCommand(transitsCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "pointingd (build info unavailable)")
			return
		}
		revision, modified := "unknown", ""
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value
			case "vcs.modified":
				if s.Value == "true" {
					modified = " (modified)"
				}
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pointingd %s\ncommit: %s%s\ngo: %s\n",
			info.Main.Version, revision, modified, info.GoVersion)
	},
}
