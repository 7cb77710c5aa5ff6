package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  `Print the options review would run with after merging defaults, the config file, REPOCODER_* variables and flags. The API key is masked.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, loaded, err := loadOptions(cmd)
		if err != nil {
			return err
		}

		data, err := opts.YAML()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if loaded.ConfigFileUsed != "" {
			fmt.Fprintf(out, "# config file: %s\n", loaded.ConfigFileUsed)
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	addPipelineFlags(configCmd.Flags())
	RootCmd.AddCommand(configCmd)
}
