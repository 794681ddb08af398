package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/campusdesk/pkg/dispatcher"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var (
		who    identityFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Run one conversation turn",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := who.session(); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			oracle, err := a.oracle()
			if err != nil {
				return err
			}
			d, err := a.dispatcher(oracle)
			if err != nil {
				return err
			}

			claims := who.claims()
			resp := d.HandleTurn(ctx, dispatcher.TurnRequest{
				Claims:  &claims,
				Message: strings.Join(args, " "),
			})
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, resp.Text)
			}
			if resp.Status == dispatcher.StatusFailed {
				return turnError(resp.Code, "turn failed")
			}
			return nil
		},
	}
	who.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}
