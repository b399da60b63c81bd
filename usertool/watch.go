package main

import (
	"encoding/json"

	"github.com/sandrolain/userkit/pkg/common"
	"github.com/sandrolain/userkit/pkg/gateway"
	"github.com/sandrolain/userkit/pkg/toolutil"
	"github.com/spf13/cobra"
)

func watchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the users collection for changes",
		Long:  "Prints every insert, update and delete on the users collection until interrupted. Requires a replica set or sharded cluster.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := common.SetupGracefulShutdown()
			defer cancel()

			g, release, err := a.open(ctx, a)
			if err != nil {
				return err
			}
			defer release()

			toolutil.PrintSuccess("Watching MongoDB collection for changes")
			toolutil.PrintKeyValue("Database", a.cfg.Database)
			toolutil.PrintKeyValue("Collection", a.cfg.Collection)

			return g.Watch(ctx, printChange)
		},
	}
	return cmd
}

func printChange(evt gateway.ChangeEvent) error {
	sections := []toolutil.MessageSection{
		{
			Title: "Change Event",
			Items: []toolutil.KV{
				{Key: "Operation", Value: evt.Operation},
				{Key: "ID", Value: evt.ID},
			},
		},
	}

	var body []byte
	if evt.User != nil {
		data, err := json.Marshal(evt.User.Profile())
		if err != nil {
			toolutil.PrintError("Failed to encode user: %v", err)
		} else {
			body = data
		}
	}
	toolutil.PrintColoredMessage("User", sections, body, toolutil.CTJSON)
	return nil
}
