package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUserCmd(coordinatorAddr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and their group memberships",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <user>",
		Args:  cobra.ExactArgs(1),
		Short: "Add a user",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/user/add", map[string]string{"user": args[0]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <user>",
		Args:  cobra.ExactArgs(1),
		Short: "Remove a user",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/user/remove", map[string]string{"user": args[0]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "contains <user>",
		Args:  cobra.ExactArgs(1),
		Short: "Check whether a user exists",
		RunE: func(c *cobra.Command, args []string) error {
			var out map[string]bool
			if err := call(*coordinatorAddr, "/v1/user/contains", map[string]string{"user": args[0]}, &out); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), out["value"])
			return nil
		},
	})

	var includeIndirect bool
	groupsCmd := &cobra.Command{
		Use:   "groups <user>",
		Args:  cobra.ExactArgs(1),
		Short: "List the groups a user belongs to",
		RunE: func(c *cobra.Command, args []string) error {
			var out map[string][]string
			req := map[string]any{"user": args[0], "includeIndirect": includeIndirect}
			if err := call(*coordinatorAddr, "/v1/user/groups", req, &out); err != nil {
				return err
			}
			for _, g := range out["values"] {
				fmt.Fprintln(c.OutOrStdout(), g)
			}
			return nil
		},
	}
	groupsCmd.Flags().BoolVar(&includeIndirect, "include-indirect", false, "follow the full group-to-group closure")
	cmd.AddCommand(groupsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "add-to-group <user> <group>",
		Args:  cobra.ExactArgs(2),
		Short: "Map a user into a group",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/user/add-to-group", map[string]string{"user": args[0], "group": args[1]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove-from-group <user> <group>",
		Args:  cobra.ExactArgs(2),
		Short: "Remove a user's mapping to a group",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/user/remove-from-group", map[string]string{"user": args[0], "group": args[1]}, nil)
		},
	})

	return cmd
}
