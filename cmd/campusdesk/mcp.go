package main

import (
	"github.com/spf13/cobra"

	"github.com/jllopis/campusdesk/pkg/mcp"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	var who identityFlags
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve one identity's tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := who.session()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []mcp.Option
			if trail := a.auditTrail(); trail != nil {
				opts = append(opts, mcp.WithAudit(trail))
			}
			srv, err := mcp.NewServer("campusdesk", version, a.caps, sc, opts...)
			if err != nil {
				return startupError("mcp", err, "")
			}
			return srv.ServeStdio()
		},
	}
	who.register(cmd)
	return cmd
}
