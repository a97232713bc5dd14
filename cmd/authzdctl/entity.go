package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEntityCmd(coordinatorAddr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage entity types and entities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add-type <entityType>",
		Args:  cobra.ExactArgs(1),
		Short: "Register an entity type",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/entity-type/add", map[string]string{"entityType": args[0]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove-type <entityType>",
		Args:  cobra.ExactArgs(1),
		Short: "Remove an entity type",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/entity-type/remove", map[string]string{"entityType": args[0]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <entityType> <entity>",
		Args:  cobra.ExactArgs(2),
		Short: "Add an entity of a registered type",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/entity/add", map[string]string{"entityType": args[0], "entity": args[1]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <entityType> <entity>",
		Args:  cobra.ExactArgs(2),
		Short: "Remove an entity",
		RunE: func(c *cobra.Command, args []string) error {
			return call(*coordinatorAddr, "/v1/entity/remove", map[string]string{"entityType": args[0], "entity": args[1]}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "contains <entityType> <entity>",
		Args:  cobra.ExactArgs(2),
		Short: "Check whether an entity exists",
		RunE: func(c *cobra.Command, args []string) error {
			var out map[string]bool
			if err := call(*coordinatorAddr, "/v1/entity/contains", map[string]string{"entityType": args[0], "entity": args[1]}, &out); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), out["value"])
			return nil
		},
	})

	return cmd
}
