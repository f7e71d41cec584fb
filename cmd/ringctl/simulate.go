package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var (
		nodeCount int
		vnodes    uint32
		keyCount  int
	)

	var cmd = &cobra.Command{
		Use:   "simulate",
		Short: "Measure how many keys move when one node joins and leaves",
		RunE: func(cmd *cobra.Command, args []string) error {
			if nodeCount < 1 || keyCount < 1 || vnodes < 1 {
				return errors.New("--nodes, --vnodes and --keys must be positive")
			}

			var nodes = make([]string, nodeCount)
			for i := range nodes {
				nodes[i] = fmt.Sprintf("10.0.%d.%d:8080", i/250, i%250+1)
			}

			var ring, err = buildRing(nodes, vnodes)
			if err != nil {
				return err
			}

			// Content identifiers are random, so every run samples a fresh key population
			var keys = make([]string, keyCount)
			for i := range keys {
				keys[i] = uuid.NewString()
			}

			var lookupAll = func() ([]string, error) {
				var owners = make([]string, len(keys))
				for i, key := range keys {
					var owner, err = ring.Lookup(key)
					if err != nil {
						return nil, err
					}
					owners[i] = owner
				}
				return owners, nil
			}

			before, err := lookupAll()
			if err != nil {
				return fmt.Errorf("failed to look up keys: %w", err)
			}

			const joiner = "10.255.255.254:8080"
			if err := ring.AddNode(joiner, vnodes); err != nil {
				return fmt.Errorf("failed to add %s: %w", joiner, err)
			}

			joined, err := lookupAll()
			if err != nil {
				return fmt.Errorf("failed to look up keys: %w", err)
			}

			if err := ring.RemoveNode(joiner); err != nil {
				return fmt.Errorf("failed to remove %s: %w", joiner, err)
			}

			left, err := lookupAll()
			if err != nil {
				return fmt.Errorf("failed to look up keys: %w", err)
			}

			var moved, toJoiner, restored int
			for i := range keys {
				if before[i] != joined[i] {
					moved++
				}
				if joined[i] == joiner {
					toJoiner++
				}
				if before[i] == left[i] {
					restored++
				}
			}

			var (
				out   = cmd.OutOrStdout()
				total = float64(keyCount)
				share = 1 / float64(nodeCount+1)
			)
			fmt.Fprintf(out, "nodes: %d  vnodes/node: %d  keys: %d  hasher: %s\n", nodeCount, vnodes, keyCount, hasherName)
			fmt.Fprintf(out, "join:  %6.2f%% of keys remapped, %6.2f%% served by the new node (fair share %.2f%%)\n",
				100*float64(moved)/total, 100*float64(toJoiner)/total, 100*share)
			fmt.Fprintf(out, "leave: %6.2f%% of keys back on their original node\n", 100*float64(restored)/total)

			return nil
		},
	}

	cmd.Flags().IntVar(&nodeCount, "nodes", 10, "Number of nodes before the join")
	cmd.Flags().Uint32Var(&vnodes, "vnodes", 100, "Virtual nodes per node")
	cmd.Flags().IntVar(&keyCount, "keys", 100000, "Number of random keys to route")

	return cmd
}
