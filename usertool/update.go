package main

import (
	"github.com/sandrolain/userkit/pkg/common"
	"github.com/sandrolain/userkit/pkg/toolutil"
	"github.com/spf13/cobra"
)

func updateCommand(a *app) *cobra.Command {
	var (
		id       string
		userJSON string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace the fields of the user with the given ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := common.SetupGracefulShutdown()
			defer cancel()

			g, release, err := a.open(ctx, a)
			if err != nil {
				return err
			}
			defer release()

			toolutil.PrintInfo("Trying to update user with ID %s", id)
			out, err := g.Update(ctx, id, userJSON)
			if err != nil {
				return err
			}
			if out.Affected > 0 {
				toolutil.PrintSuccess("Update successful: %d document(s) modified", out.Affected)
			} else if out.Matched > 0 {
				toolutil.PrintInfo("User %s already up to date", id)
			} else {
				toolutil.PrintInfo("Update failed: no user with ID %s", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "ObjectID (hex) of the user")
	cmd.Flags().StringVarP(&userJSON, "user", "u", "", "New user as a JSON object")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
