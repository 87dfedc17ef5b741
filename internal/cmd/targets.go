package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/dosanma1/xcforge/internal/config"
	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/matrix"
	"github.com/dosanma1/xcforge/internal/ui"
)

var targetsAll bool

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the target matrix",
	Long: `List the configured target matrix with the platform each target belongs to
and the reference target used for binding generation. With --all every
supported triple is listed.`,
	RunE: runTargets,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.Flags().BoolVar(&targetsAll, "all", false, "List every supported triple")
}

func runTargets(cmd *cobra.Command, args []string) error {
	var m *matrix.Matrix
	if targetsAll {
		var all []domain.Target
		for _, triple := range matrix.KnownTriples() {
			t, _ := matrix.Lookup(triple)
			all = append(all, t)
		}
		m = matrix.New(all, "")
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if m, err = config.NewResolver(cfg).ResolveMatrix(nil, ""); err != nil {
			return err
		}
		if err := m.Validate(); err != nil {
			return err
		}
	}

	merged := map[string]bool{}
	for _, f := range m.Families() {
		if f.NeedsMerge() {
			merged[string(f.Platform)] = true
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ui.HelpStyle).
		Headers("TRIPLE", "OS", "ARCH", "PLATFORM", "NOTES")
	for _, target := range m.Targets() {
		var notes string
		if m.IsReference(target) {
			notes = "reference"
		}
		if !targetsAll && merged[string(target.Platform())] {
			if notes != "" {
				notes += ", "
			}
			notes += "merged"
		}
		t.Row(target.Triple, string(target.OS), string(target.Arch), string(target.Platform()), notes)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}
