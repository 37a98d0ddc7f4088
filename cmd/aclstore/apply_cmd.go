package main

import (
	"fmt"

	"github.com/openmined/aclstore/internal/aclspec"
	"github.com/spf13/cobra"
)

func newApplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file|dir|pattern>...",
		Short: "Create or replace the ACLs declared in seed files",
		Long: `Create or replace the ACLs declared in seed files.

Directories are searched for *` + aclspec.SeedFileExt + ` files and patterns
such as 'seeds/**/*` + aclspec.SeedFileExt + `' are expanded. Every file is
validated before anything is written.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := aclspec.ExpandPaths(args)
			if err != nil {
				return err
			}

			files, err := aclspec.LoadFiles(cmd.Context(), paths)
			if err != nil {
				return err
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}

			var total aclspec.ApplyResult
			for _, file := range files {
				result, err := aclspec.Apply(cmd.Context(), rt.Service, file, rt.Permissions)
				total.Created += result.Created
				total.Updated += result.Updated
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %d files: %d created, %d updated\n", green("applied"), len(files), total.Created, total.Updated)
			return nil
		},
	}
}
