package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	hashring "go-hashring"
	"go-hashring/membership"

	"github.com/eiannone/keyboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		pollInterval time.Duration
		vnodes       uint32
	)

	var cmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow the members table and show the live ring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), pollInterval, vnodes)
		},
	}
	addDatabaseFlags(cmd)
	cmd.Flags().DurationVar(&pollInterval, "poll", 2*time.Second, "Members table poll interval")
	cmd.Flags().Uint32Var(&vnodes, "vnodes", 100, "Virtual nodes for members without a count")

	return cmd
}

func runWatch(ctx context.Context, pollInterval time.Duration, vnodes uint32) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var opts, err = ringOptions()
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to database...\n")
	db, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		logger  = newLogger()
		ring    = hashring.NewRing(opts...)
		watcher = membership.NewWatcher(ring, store,
			membership.WithPollInterval(pollInterval),
			membership.WithDefaultVirtualCount(vnodes),
			membership.WithLogger(logger),
		)
	)

	fmt.Printf("Following ring '%s'...\n", ringID)
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Stop()

	var lastLookup string
	printStatus(ring, lastLookup)

	// Set up periodic status updates
	var ticker = time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	// Set up signal handling for graceful shutdown
	var sigCh = make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Initialize keyboard
	if err := keyboard.Open(); err != nil {
		return fmt.Errorf("failed to initialize keyboard: %w", err)
	}
	defer keyboard.Close()

	// Keyboard input channel
	var keyCh = make(chan rune)
	go func() {
		for {
			char, _, err := keyboard.GetKey()
			if err != nil {
				return
			}
			keyCh <- char
		}
	}()

	// Main loop
	for {
		select {
		case <-ticker.C:
			printStatus(ring, lastLookup)
		case key := <-keyCh:
			switch key {
			case 'l', 'L':
				var content = uuid.NewString()
				if node, err := ring.Lookup(content); err != nil {
					lastLookup = fmt.Sprintf("%s -> %v", content, err)
				} else {
					lastLookup = fmt.Sprintf("%s -> %s", content, node)
				}
				printStatus(ring, lastLookup)
			case 'p', 'P':
				var content = uuid.NewString()
				if err := ring.Put(content); err != nil {
					lastLookup = fmt.Sprintf("put %s failed: %v", content, err)
				} else {
					var node, _ = ring.Lookup(content)
					lastLookup = fmt.Sprintf("put %s on %s", content, node)
				}
				printStatus(ring, lastLookup)
			case 'q', 'Q':
				fmt.Printf("\n\nShutting down...\n")
				return nil
			}
		case sig := <-sigCh:
			fmt.Printf("\n\nReceived signal %v, shutting down...\n", sig)
			return nil
		}
	}
}

func printStatus(ring *hashring.Ring, lastLookup string) {
	fmt.Print("\033[2J\033[H") // Clear screen and move cursor to top
	fmt.Println(ring.String())

	if lastLookup != "" {
		fmt.Printf("\nLast: %s\n", lastLookup)
	}

	fmt.Printf("\nControls:\n")
	fmt.Printf("  [l] Look up a random content id\n")
	fmt.Printf("  [p] Put a random content id\n")
	fmt.Printf("  [q] Quit\n")
}
