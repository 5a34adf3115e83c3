package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxkey/internal/locator"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List model variants and whether they are installed",
	Long: `List the model variants voxkey knows and whether their files exist
below recognition.model_dir. The configured variant is marked with "*".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, _, err := loadConfig()
		if err != nil {
			return err
		}
		loc := locator.NewDirLocator(cfg.Recognition.ModelDir)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\tVARIANT\tBACKEND\tSTATUS")
		for _, name := range loc.Variants() {
			v, _ := loc.Lookup(name)
			mark := ""
			if name == cfg.Recognition.Variant {
				mark = "*"
			}
			status := "installed"
			if _, err := loc.Locate(name); err != nil {
				status = "missing"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, name, v.Backend, status)
		}
		return tw.Flush()
	},
}
