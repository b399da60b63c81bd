package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/sandrolain/userkit/pkg/common"
	"github.com/sandrolain/userkit/pkg/gateway"
	"github.com/sandrolain/userkit/pkg/toolutil"
	"github.com/sandrolain/userkit/pkg/user"
	"github.com/spf13/cobra"
)

func readCommand(a *app) *cobra.Command {
	var (
		name     string
		username string
		email    string
		id       string
		format   string
		interval string
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read users, optionally filtered by exact field values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mime, err := toolutil.FormatMIME(format)
			if err != nil {
				return err
			}

			filter := gateway.Filter{}
			for field, value := range map[string]string{
				"name":       name,
				"username":   username,
				"email":      email,
				user.IDField: id,
			} {
				if cmd.Flags().Changed(flagFor(field)) {
					filter[field] = value
				}
			}

			ctx, cancel := common.SetupGracefulShutdown()
			defer cancel()

			g, release, err := a.open(ctx, a)
			if err != nil {
				return err
			}
			defer release()

			if mime == toolutil.CTText {
				if len(filter) == 0 {
					toolutil.PrintInfo("Reading all users in database")
				} else {
					toolutil.PrintInfo("Trying to find users matching %v", map[string]any(filter))
				}
			}

			out := cmd.OutOrStdout()
			return common.RunOnceOrPeriodic(ctx, interval, func(ctx context.Context) error {
				users, err := g.Read(ctx, filter)
				if err != nil {
					return err
				}
				return writeUsers(out, users, mime)
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Match users with exactly this name")
	cmd.Flags().StringVar(&username, "username", "", "Match users with exactly this username")
	cmd.Flags().StringVar(&email, "email", "", "Match users with exactly this email")
	cmd.Flags().StringVar(&id, "id", "", "Match the user with this ObjectID (hex)")
	toolutil.AddFormatFlag(cmd, &format, "text")
	toolutil.AddIntervalFlag(cmd, &interval, "")

	return cmd
}

func flagFor(field string) string {
	if field == user.IDField {
		return "id"
	}
	return field
}

// writeUsers prints users one per line as text, or as a JSON or CBOR array of
// password-free profiles.
func writeUsers(w io.Writer, users []*user.User, mime string) error {
	if mime == toolutil.CTText {
		for _, u := range users {
			if _, err := fmt.Fprintln(w, u); err != nil {
				return err
			}
		}
		return nil
	}

	profiles := make([]user.Profile, len(users))
	for i, u := range users {
		profiles[i] = u.Profile()
	}

	var (
		data []byte
		err  error
	)
	if mime == toolutil.CTCBOR {
		data, err = cbor.Marshal(profiles)
	} else {
		data, err = json.MarshalIndent(profiles, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return user.SerializationFailure(err)
	}
	_, err = w.Write(data)
	return err
}
