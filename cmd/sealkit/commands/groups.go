package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sealkit/sdk"
)

func userIDs(ids []string) []sdk.UserID {
	out := make([]sdk.UserID, 0, len(ids))
	for _, id := range ids {
		out = append(out, sdk.UserID(id))
	}
	return out
}

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Create and manage groups",
	}

	var (
		name    string
		members []string
		admins  []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a group; you are always a member and an admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			gid, err := s.CreateGroup(ctx(cmd), sdk.CreateGroupOptions{
				Name:    name,
				Members: userIDs(members),
				Admins:  userIDs(admins),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), gid)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "group name")
	create.Flags().StringSliceVar(&members, "member", nil, "member user IDs")
	create.Flags().StringSliceVar(&admins, "admin", nil, "admin user IDs (must also be members)")

	var addAdmins []string
	add := &cobra.Command{
		Use:   "add <group> <user>...",
		Short: "Add members and share every group key with them",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			return s.AddGroupMembers(ctx(cmd), sdk.GroupID(args[0]), userIDs(args[1:]), userIDs(addAdmins))
		},
	}
	add.Flags().StringSliceVar(&addAdmins, "admin", nil, "added users that also become admins")

	remove := &cobra.Command{
		Use:   "remove <group> <user>...",
		Short: "Remove members and renew the group key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			return s.RemoveGroupMembers(ctx(cmd), sdk.GroupID(args[0]), userIDs(args[1:]))
		},
	}

	renew := &cobra.Command{
		Use:   "renew <group>",
		Short: "Install a new group key generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			return s.RenewGroupKey(ctx(cmd), sdk.GroupID(args[0]), nil)
		},
	}

	setAdmins := &cobra.Command{
		Use:   "admins <group> <user>...",
		Short: "Replace the admin set of a group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			return s.SetGroupAdmins(ctx(cmd), sdk.GroupID(args[0]), userIDs(args[1:]))
		},
	}

	cmd.AddCommand(create, add, remove, renew, setAdmins)
	return cmd
}
