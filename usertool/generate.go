package main

import (
	"fmt"
	"os"

	"github.com/sandrolain/userkit/pkg/testpayload"
	"github.com/sandrolain/userkit/pkg/toolutil"
	"github.com/spf13/cobra"
)

func generateCommand() *cobra.Command {
	var (
		count  int
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate fake users for bulk creation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			mime, err := toolutil.FormatMIME(format)
			if err != nil {
				return err
			}

			var data []byte
			switch mime {
			case toolutil.CTCBOR:
				data, err = testpayload.GenerateUsersCBOR(count)
			case toolutil.CTJSON:
				data, err = testpayload.GenerateUsersJSON(count)
			default:
				return fmt.Errorf("unsupported format %q (want json or cbor)", format)
			}
			if err != nil {
				return fmt.Errorf("failed to generate users: %w", err)
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			toolutil.PrintSuccess("Wrote %d user(s) to %s", count, output)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "c", 10, "Number of users")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	toolutil.AddFormatFlag(cmd, &format, "json")

	return cmd
}
