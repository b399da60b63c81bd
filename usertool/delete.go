package main

import (
	"github.com/sandrolain/userkit/pkg/common"
	"github.com/sandrolain/userkit/pkg/toolutil"
	"github.com/spf13/cobra"
)

func deleteCommand(a *app) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the user with the given ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := common.SetupGracefulShutdown()
			defer cancel()

			g, release, err := a.open(ctx, a)
			if err != nil {
				return err
			}
			defer release()

			toolutil.PrintInfo("Trying to delete user with ID %s", id)
			out, err := g.Delete(ctx, id)
			if err != nil {
				return err
			}
			if out.Affected > 0 {
				toolutil.PrintSuccess("Delete successful: %d document(s) deleted", out.Affected)
			} else {
				toolutil.PrintInfo("Delete failed: no user with ID %s", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "ObjectID (hex) of the user")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
