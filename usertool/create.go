package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sandrolain/userkit/pkg/bulk"
	"github.com/sandrolain/userkit/pkg/common"
	"github.com/sandrolain/userkit/pkg/gateway"
	"github.com/sandrolain/userkit/pkg/toolutil"
	"github.com/spf13/cobra"
)

func createCommand(a *app) *cobra.Command {
	var (
		userJSON       string
		filePath       string
		workers        int
		failFast       bool
		batchTimeout   time.Duration
		cleanupOrphans bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create one user, or many concurrently from a JSON or CBOR array file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if filePath != "" {
				toolutil.PrintInfo("Trying to read file from path: `%s`", filePath)
				var err error
				if text, err = readUsersFile(filePath); err != nil {
					return err
				}
			}
			if workers < 0 {
				return fmt.Errorf("--workers must not be negative")
			}

			ctx, cancel := common.SetupGracefulShutdown()
			defer cancel()

			g, release, err := a.open(ctx, a, gateway.WithOrphanCleanup(cleanupOrphans))
			if err != nil {
				return err
			}
			defer release()

			if filePath == "" {
				toolutil.PrintInfo("Trying to create new user")
				u, err := g.Create(ctx, userJSON)
				if err != nil {
					return err
				}
				toolutil.PrintSuccess("Created %s", u)
				return nil
			}

			policy := bulk.CollectAll
			if failFast {
				policy = bulk.FailFast
			}
			report, err := bulk.CreateMany(ctx, g, text,
				bulk.WithPolicy(policy),
				bulk.WithWorkers(workers),
				bulk.WithTimeout(batchTimeout),
				bulk.WithProgress(printProgress),
			)
			if report != nil {
				printReport(report)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&userJSON, "user", "u", "", "User as a JSON object")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path of a file holding a JSON or CBOR array of users")
	cmd.Flags().IntVar(&workers, "workers", a.cfg.Workers, "Maximum concurrent creates, 0 for one per record (BULK_WORKERS)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Cancel outstanding creates on the first failure")
	cmd.Flags().DurationVar(&batchTimeout, "batch-timeout", a.cfg.BatchTimeout, "Deadline for the whole batch, 0 to disable (BULK_TIMEOUT)")
	cmd.Flags().BoolVar(&cleanupOrphans, "cleanup-orphans", false, "Delete documents inserted without a usable ObjectID")
	cmd.MarkFlagsMutuallyExclusive("user", "file")
	cmd.MarkFlagsOneRequired("user", "file")

	return cmd
}

// readUsersFile returns the file content as JSON text, converting CBOR input.
func readUsersFile(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is provided by the operator
	if err != nil {
		return "", fmt.Errorf("could not read file from path: `%s`: %w", path, err)
	}
	if toolutil.GuessMIME(data) == toolutil.CTCBOR {
		toolutil.Logger().Debug("Converting CBOR input to JSON", "path", path)
		if data, err = toolutil.DecodeCBORToJSON(data); err != nil {
			return "", fmt.Errorf("could not decode CBOR file `%s`: %w", path, err)
		}
	}
	return string(data), nil
}

func printProgress(s bulk.Snapshot, o bulk.Outcome) {
	switch o.Status {
	case bulk.StatusCreated:
		toolutil.PrintSuccess("Created %d/%d: %s", s.Completed, s.Total, o.User)
	case bulk.StatusFailed:
		toolutil.PrintError("Failed %d/%d: record %d: %v", s.Completed, s.Total, o.Index, o.Err)
	default:
		toolutil.Logger().Debug("Record skipped", "index", o.Index, "error", o.Err)
	}
}

func printReport(r *bulk.Report) {
	toolutil.PrintColoredMessage("Bulk create", []toolutil.MessageSection{
		{
			Title: "Summary",
			Items: []toolutil.KV{
				{Key: "Policy", Value: r.Policy},
				{Key: "Total", Value: r.Total},
				{Key: "Created", Value: r.Created},
				{Key: "Failed", Value: r.Failed},
				{Key: "Skipped", Value: r.Skipped},
			},
		},
	}, nil, toolutil.CTText)
}
