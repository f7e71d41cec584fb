package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newLookupCmd() *cobra.Command {
	var (
		nodesStr string
		vnodes   uint32
		show     bool
	)

	var cmd = &cobra.Command{
		Use:   "lookup KEY...",
		Short: "Print the node serving each key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nodes = parseNodes(nodesStr)
			if len(nodes) == 0 {
				return errors.New("at least one node is required (--nodes)")
			}

			var ring, err = buildRing(nodes, vnodes)
			if err != nil {
				return err
			}

			for _, key := range args {
				var node, err = ring.Lookup(key)
				if err != nil {
					return fmt.Errorf("failed to look up %s: %w", key, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, node)
			}

			if show {
				fmt.Fprintln(cmd.OutOrStdout(), ring.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&nodesStr, "nodes", "", "Comma-separated node addresses")
	cmd.Flags().Uint32Var(&vnodes, "vnodes", 100, "Virtual nodes per node")
	cmd.Flags().BoolVar(&show, "show", false, "Print the ring topology after the lookups")

	return cmd
}
