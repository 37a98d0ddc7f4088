package main

import (
	"fmt"

	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/aclservice"
	"github.com/openmined/aclstore/internal/aclspec"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const identityArgs = "<type> <id>"

func addIdentityFlags(cmd *cobra.Command) {
	cmd.Flags().String("id-type", "string", "identifier type: string, int32, int64 or bytes (hex)")
}

// identityFromArgs reads the identity from the first two arguments.
func identityFromArgs(cmd *cobra.Command, args []string) (acl.ObjectIdentity, error) {
	idType, _ := cmd.Flags().GetString("id-type")
	seed := aclspec.Seed{Type: args[0], ID: args[1], IDType: idType}
	return seed.Identity()
}

func newCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create " + identityArgs,
		Short: "Create an empty ACL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := identityFromArgs(cmd, args)
			if err != nil {
				return err
			}
			owner, _ := cmd.Flags().GetString("owner")

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}

			record, err := rt.Service.CreateAcl(aclservice.WithPrincipal(cmd.Context(), owner), oid)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s owned by %s\n", green("created"), record.Identity(), record.Owner())
			return nil
		},
	}
	addIdentityFlags(cmd)
	cmd.Flags().StringP("owner", "o", "", "owning principal")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get " + identityArgs,
		Short: "Show an ACL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := identityFromArgs(cmd, args)
			if err != nil {
				return err
			}

			var sids []acl.Sid
			names, _ := cmd.Flags().GetStringSlice("sid")
			for _, name := range names {
				sid, err := aclspec.ParseSid(name)
				if err != nil {
					return err
				}
				sids = append(sids, sid)
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}

			record, err := rt.Service.ReadAclByID(cmd.Context(), oid, sids...)
			if err != nil {
				return err
			}

			if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
				seed, err := aclspec.NewSeed(record)
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(&aclspec.SeedFile{ACLs: []*aclspec.Seed{seed}}); err != nil {
					return err
				}
				return enc.Close()
			}

			printAcl(cmd.OutOrStdout(), record)
			return nil
		},
	}
	addIdentityFlags(cmd)
	cmd.Flags().StringSlice("sid", nil, "only load these sids (repeatable)")
	cmd.Flags().Bool("yaml", false, "print as a seed file")
	return cmd
}

func newGrantCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant " + identityArgs + " <sid> <permission>",
		Short: "Append an entry to an ACL",
		Long: `Append an entry to an ACL.

A sid is a principal name or "authority:NAME". A permission is a name
(read, write, create, delete, administer), a "+" joined list of names or
a decimal mask.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := identityFromArgs(cmd, args)
			if err != nil {
				return err
			}
			sid, err := aclspec.ParseSid(args[2])
			if err != nil {
				return err
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}

			perm, err := rt.Permissions.ParsePermission(args[3])
			if err != nil {
				return err
			}
			deny, _ := cmd.Flags().GetBool("deny")

			record, err := rt.Service.Grant(cmd.Context(), oid, sid, perm, !deny)
			if err != nil {
				return err
			}

			verb := green("granted")
			if deny {
				verb = red("denied")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s to %s on %s (%d entries)\n", verb, perm, sid, oid, record.Len())
			return nil
		},
	}
	addIdentityFlags(cmd)
	cmd.Flags().Bool("deny", false, "add a denying entry")
	return cmd
}

func newRevokeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke " + identityArgs + " <sid> [permission]",
		Short: "Remove the entries of a sid from an ACL",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := identityFromArgs(cmd, args)
			if err != nil {
				return err
			}
			sid, err := aclspec.ParseSid(args[2])
			if err != nil {
				return err
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}

			var perm acl.Permission
			if len(args) == 4 {
				if perm, err = rt.Permissions.ParsePermission(args[3]); err != nil {
					return err
				}
			}

			removed, err := rt.Service.Revoke(cmd.Context(), oid, sid, perm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d entries of %s on %s\n", red("revoked"), removed, sid, oid)
			return nil
		},
	}
	addIdentityFlags(cmd)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete " + identityArgs,
		Short: "Delete an ACL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := identityFromArgs(cmd, args)
			if err != nil {
				return err
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}

			if err := rt.Service.DeleteAcl(cmd.Context(), oid, false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", red("deleted"), oid)
			return nil
		},
	}
	addIdentityFlags(cmd)
	return cmd
}

func newExistsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exists " + identityArgs,
		Short: "Report whether an ACL is stored",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := identityFromArgs(cmd, args)
			if err != nil {
				return err
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}

			ok, err := rt.Service.Exists(cmd.Context(), oid)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
	addIdentityFlags(cmd)
	return cmd
}
