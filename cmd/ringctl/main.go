package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	hashring "go-hashring"

	"github.com/spf13/cobra"
)

var (
	hasherName string
	verbose    bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "ringctl",
		Short: "Inspect and drive a consistent hashing ring",
		Long: `Ringctl is a demonstration of the go-hashring library.
It builds rings in memory to answer lookups and simulate topology changes,
and can follow a PostgreSQL members table to keep a live ring in step with the cluster.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&hasherName, "hasher", "murmur", "Hash function: murmur or xxhash")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log ring changes to stderr")

	rootCmd.AddCommand(
		newLookupCmd(),
		newSimulateCmd(),
		newMemberCmd(),
		newWatchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger writes to stderr so logs don't get mixed into command output.
func newLogger() *slog.Logger {
	var level = slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// ringOptions translates the global flags into ring options.
func ringOptions() ([]hashring.Option, error) {
	var hasher hashring.Hasher
	switch strings.ToLower(hasherName) {
	case "murmur", "":
		hasher = hashring.MurmurHasher{}
	case "xxhash":
		hasher = hashring.XXHasher{}
	default:
		return nil, fmt.Errorf("unknown hasher %q (expected murmur or xxhash)", hasherName)
	}

	return []hashring.Option{
		hashring.WithHasher(hasher),
		hashring.WithLogger(newLogger()),
	}, nil
}

// parseNodes splits a comma-separated node list, dropping blanks.
func parseNodes(nodesStr string) []string {
	var nodes []string
	for _, part := range strings.Split(nodesStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			nodes = append(nodes, part)
		}
	}
	return nodes
}

// buildRing creates an in-memory ring holding nodes with vnodes virtual nodes each.
func buildRing(nodes []string, vnodes uint32) (*hashring.Ring, error) {
	var opts, err = ringOptions()
	if err != nil {
		return nil, err
	}

	var ring = hashring.NewRing(opts...)
	for _, node := range nodes {
		if err := ring.AddNode(node, vnodes); err != nil {
			return nil, fmt.Errorf("failed to add node %s: %w", node, err)
		}
	}
	return ring, nil
}
