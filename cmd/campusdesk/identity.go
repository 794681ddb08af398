package main

import (
	"github.com/spf13/cobra"

	"github.com/jllopis/campusdesk/pkg/core"
)

// identityFlags stand in for verified claims on local commands.
type identityFlags struct {
	role string
	id   int64
	name string
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.role, "role", "", "admin, teacher or student")
	cmd.Flags().Int64Var(&f.id, "id", 0, "identity id of the caller")
	cmd.Flags().StringVar(&f.name, "name", "", "display name of the caller")
	_ = cmd.MarkFlagRequired("role")
}

func (f *identityFlags) claims() core.Claims {
	return core.Claims{Role: f.role, Subject: f.id, Name: f.name}
}

func (f *identityFlags) session() (*core.SessionContext, error) {
	sc, err := core.FromClaims(f.claims())
	if err != nil {
		return nil, usageError("invalid identity", "--role, --id and --name are required; --id must be positive")
	}
	return sc, nil
}
