package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"openserver-hq/guardrails/pkg/cli"
	"openserver-hq/guardrails/pkg/telemetry/health"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "0.1.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print detailed version information including Git commit and build date.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(versionFormat)
		if err != nil {
			return err
		}
		if format != cli.FormatText {
			f, _ := cli.NewFormatter(string(format))
			return f.FormatTo(cmd.OutOrStdout(), versionInfo())
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Guardrails %s\n", Version)
		fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
		fmt.Fprintf(w, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "output format: text, json")
}

func versionInfo() health.VersionInfo {
	return health.NewVersionInfo(Version, GitCommit, BuildDate)
}
