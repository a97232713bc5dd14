package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGroupCmd(coordinatorAddr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups and group-to-group mappings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <group>",
		Args:  cobra.ExactArgs(1),
		Short: "Add a group",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/group/add", map[string]string{"group": args[0]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <group>",
		Args:  cobra.ExactArgs(1),
		Short: "Remove a group",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/group/remove", map[string]string{"group": args[0]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "contains <group>",
		Args:  cobra.ExactArgs(1),
		Short: "Check whether a group exists",
		RunE: func(c *cobra.Command, args []string) error {
			var out map[string]bool
			if err := call(*coordinatorAddr, "/v1/group/contains", map[string]string{"group": args[0]}, &out); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), out["value"])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "link <from-group> <to-group>",
		Args:  cobra.ExactArgs(2),
		Short: "Add a group-to-group mapping",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/group/add-membership", map[string]string{"fromGroup": args[0], "toGroup": args[1]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unlink <from-group> <to-group>",
		Args:  cobra.ExactArgs(2),
		Short: "Remove a group-to-group mapping",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/group/remove-membership", map[string]string{"fromGroup": args[0], "toGroup": args[1]}, nil)
		},
	})

	return cmd
}
