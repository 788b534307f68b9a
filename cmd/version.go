package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the release string. Builds overwrite it via:
//
//	go build -ldflags "-X github.com/kebunops/opsreport/cmd.Version=v0.3.0"
var Version = "v0.3.0-dev"

// BuildTime is optionally injected alongside Version:
//
//	-ldflags "-X github.com/kebunops/opsreport/cmd.BuildTime=2026-02-16T12:00:00Z"
var BuildTime = ""

// versionInfo is the structured payload for --format json output.
type versionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	BuildTime string `json:"build_time,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the opsreport version and build information",
	Long: `Print the opsreport version string and build metadata.

Default output is plain text. Use --format json for structured output.

Examples:
  opsreport version
  opsreport version --format json | jq .version`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{
			Version:   Version,
			GoVersion: runtime.Version(),
			GOOS:      runtime.GOOS,
			GOARCH:    runtime.GOARCH,
			BuildTime: BuildTime,
		}
		out := cmd.OutOrStdout()

		switch globalFlags.Format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case "jsonl":
			return json.NewEncoder(out).Encode(info)
		default:
			fmt.Fprintf(out, "opsreport %s\n", info.Version)
			fmt.Fprintf(out, "go        %s\n", info.GoVersion)
			fmt.Fprintf(out, "os        %s/%s\n", info.GOOS, info.GOARCH)
			if info.BuildTime != "" {
				fmt.Fprintf(out, "built     %s\n", info.BuildTime)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
