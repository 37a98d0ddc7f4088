package main

import (
	"fmt"

	"github.com/openmined/aclstore/internal/aclcodec"
	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the ACL table and its column families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}

			if err := rt.Store.EnsureSchema(cmd.Context(), aclcodec.Families...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s store\n", green("initialized"), a.cfg.Store.Backend)
			return nil
		},
	}
}
