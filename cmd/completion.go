package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/render"
)

// completionCmd wraps Cobra's shell completion generator.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for opsreport.

To load completions in the current shell session:

  # bash
  source <(opsreport completion bash)

  # zsh
  source <(opsreport completion zsh)

  # fish
  opsreport completion fish | source

Preset names complete from the local database when db_path is set.`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(cmd.OutOrStdout(), true)
		case "zsh":
			return root.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return root.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		default:
			return cmd.Help()
		}
	},
}

// completePresetNames offers saved preset names. Any store error yields no
// suggestions.
func completePresetNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	deps, st, err := openStore()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer deps.Close()

	presets, err := st.ListPresets()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, p := range presets {
		if strings.HasPrefix(strings.ToLower(p.Name), strings.ToLower(toComplete)) {
			out = append(out, p.Name+"\t"+p.Report)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeFormats offers the output formats for --format.
func completeFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return render.Formats, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)

	for _, c := range []*cobra.Command{presetShowCmd, presetRunCmd, presetDeleteCmd} {
		c.ValidArgsFunction = completePresetNames
	}
	_ = rootCmd.RegisterFlagCompletionFunc("format", completeFormats)
}
