package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drengskapur/repocoder/pkg/payload"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the built-in actions",
	Long:  `List the built-in actions and their instructions. Any other text of more than 5 characters is accepted as a custom action.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := newPrinter(cmd.OutOrStdout())
		for _, action := range payload.Actions() {
			fmt.Fprintf(out.w, "%s\n    %s\n", out.name(action.Name), action.Instruction)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(actionsCmd)
}
