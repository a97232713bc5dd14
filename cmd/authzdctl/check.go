package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(coordinatorAddr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run authorization checks against a user or group set",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "component-access <user> <component> <accessLevel>",
		Args:  cobra.ExactArgs(3),
		Short: "Check whether a user can reach an application component",
		RunE: func(c *cobra.Command, args []string) error {
			req := map[string]string{"user": args[0], "component": args[1], "accessLevel": args[2]}
			var out map[string]bool
			if err := call(*coordinatorAddr, "/v1/user/has-component-access", req, &out); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), out["value"])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "entity-access <user> <entityType> <entity>",
		Args:  cobra.ExactArgs(3),
		Short: "Check whether a user can reach an entity",
		RunE: func(c *cobra.Command, args []string) error {
			req := map[string]string{"user": args[0], "entityType": args[1], "entity": args[2]}
			var out map[string]bool
			if err := call(*coordinatorAddr, "/v1/user/has-entity-access", req, &out); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), out["value"])
			return nil
		},
	})

	return cmd
}
