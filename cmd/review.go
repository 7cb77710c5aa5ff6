package cmd

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/drengskapur/repocoder/pkg/logging"
	"github.com/drengskapur/repocoder/pkg/repocoder"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Scan a directory and send it to the LLM",
	Long: `Scan the directory, assemble the payload and send it with the action to the
selected provider. The formatted response is written to --output and printed.`,
	Example: `  repocoder review -d ./src -a code-improvement
  repocoder review --llm gemini --format raw -o review.md
  repocoder review -a "Add docstrings to every public function"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, _, err := loadOptions(cmd)
		if err != nil {
			return err
		}

		result, err := repocoder.SendForReview(cmd.Context(), opts, repocoder.Deps{Logger: logging.Logger})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, result.Formatted)
		if !strings.HasSuffix(result.Formatted, "\n") {
			fmt.Fprintln(out)
		}

		status := newPrinter(cmd.ErrOrStderr())
		status.success("Response written to %s", result.OutputPath)
		status.dim("%s files, %s %s sent to %s (%s); %s input / %s output tokens; %d attempt(s)",
			humanize.Comma(int64(result.Payload.Files)),
			humanize.Comma(int64(result.Payload.Size)), result.Payload.Unit,
			result.Response.Provider, result.Response.Model,
			humanize.Comma(int64(result.Response.InputTokens)),
			humanize.Comma(int64(result.Response.OutputTokens)),
			result.Response.Attempts)
		if result.PayloadPath != "" {
			status.dim("payload written to %s", result.PayloadPath)
		}
		return nil
	},
}

func init() {
	addPipelineFlags(reviewCmd.Flags())
	RootCmd.AddCommand(reviewCmd)
}
