package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/drengskapur/repocoder/pkg/config"
	"github.com/drengskapur/repocoder/pkg/logging"
	"github.com/drengskapur/repocoder/pkg/output"
	"github.com/drengskapur/repocoder/pkg/repocoder"
)

const stdoutPath = "-"

var payloadCmd = &cobra.Command{
	Use:   "payload",
	Short: "Assemble the payload without contacting a provider",
	Long: `Scan the directory and assemble the payload exactly as review would send it.
The payload is written to --payload-file (default all_code.txt); pass "-" to print it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, _, err := loadOptions(cmd)
		if err != nil {
			return err
		}

		p, stats, err := repocoder.BuildPayload(cmd.Context(), opts, logging.Logger)
		if err != nil {
			return err
		}

		dest := opts.PayloadFile
		if dest == "" {
			dest = config.DefaultPayloadFile
		}
		if dest == stdoutPath {
			fmt.Fprint(cmd.OutOrStdout(), p.Text)
			return nil
		}
		if err := output.WriteFile(dest, []byte(p.Text)); err != nil {
			return err
		}

		status := newPrinter(cmd.ErrOrStderr())
		status.success("Payload written to %s", dest)
		status.dim("%s files, %s %s; %s excluded, %s binary, %s oversized, %s unreadable",
			humanize.Comma(int64(p.Files)),
			humanize.Comma(int64(p.Size)), p.Unit,
			humanize.Comma(int64(stats.Excluded)),
			humanize.Comma(int64(stats.Binary)),
			humanize.Comma(int64(stats.Oversized)),
			humanize.Comma(int64(stats.Unreadable)))
		return nil
	},
}

func init() {
	addPipelineFlags(payloadCmd.Flags())
	RootCmd.AddCommand(payloadCmd)
}
