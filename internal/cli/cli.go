package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lprior-repo/oya-sub002/internal/config"
	"github.com/lprior-repo/oya-sub002/internal/engine"
	"github.com/lprior-repo/oya-sub002/internal/log"
	internal_storage "github.com/lprior-repo/oya-sub002/internal/storage"
)

func SetupCLI(rootCmd *cobra.Command) {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the orchestration engine",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			if dir, err := cmd.Flags().GetString("data-dir"); err == nil && dir != "" {
				cfg.DataDir = dir
			}
			runEngine(cfg)
		},
	}
	runCmd.Flags().String("data-dir", "", "store data directory (overrides OYA_DATA_DIR)")

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Dump the tail of the event log (engine must not be running)",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			if dir, err := cmd.Flags().GetString("data-dir"); err == nil && dir != "" {
				cfg.DataDir = dir
			}
			fromID, _ := cmd.Flags().GetInt64("from")
			dumpEvents(cfg, fromID)
		},
	}
	eventsCmd.Flags().String("data-dir", "", "store data directory (overrides OYA_DATA_DIR)")
	eventsCmd.Flags().Int64("from", 0, "dump events with id greater than this")

	rootCmd.AddCommand(runCmd, eventsCmd)
}

func runEngine(cfg config.Config) {
	logger := log.GetLogger()
	store, err := internal_storage.InitStore(cfg.DataDir, logger)
	if err != nil {
		logger.Errorf("Failed to open store: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Errorf("Failed to close store: %v", cerr)
		}
	}()

	eng, err := engine.New(cfg, store, logger)
	if err != nil {
		logger.Errorf("Failed to build engine: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(ctx)
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sig:
			logger.Infof("Received %s, shutting down", s)
			cancel()
			return nil
		case <-ctx.Done():
			return nil
		}
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Errorf("Engine stopped: %v", err)
		os.Exit(1)
	}
}

func dumpEvents(cfg config.Config, fromID int64) {
	logger := log.GetLogger()
	store, err := internal_storage.InitStore(cfg.DataDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	events, err := store.Events(fromID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read events: %v\n", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Println("No events found.")
		return
	}
	for _, e := range events {
		fmt.Printf("%6d  %s  %-22s  %-12s  %s\n",
			e.ID, e.Timestamp.Format(time.RFC3339), e.Kind, e.BeadID, e.Payload)
	}
}
