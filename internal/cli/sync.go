package cli

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ywzqhl/triesync/internal/config"
	"github.com/ywzqhl/triesync/internal/core/shamap"
	"github.com/ywzqhl/triesync/internal/nodesink"
	"github.com/ywzqhl/triesync/internal/synctransport"
)

var syncItemCount int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Populate a demo source map and sync a fresh destination against it",
	Long: `sync builds a source trie with randomly generated items, syncs an
empty destination against it over an in-process transport, drains the
destination's newly materialized nodes into the configured storage
backend, and reports whether the two trees ended up identical.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().IntVar(&syncItemCount, "items", 10_000, "number of demo items to seed the source with")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}
	applyLogConfig(cfg.Log)

	source := shamap.New()
	for i := 0; i < syncItemCount; i++ {
		var key [32]byte
		if _, err := rand.Read(key[:]); err != nil {
			return fmt.Errorf("cli: generate demo key: %w", err)
		}
		value := make([]byte, 16)
		if _, err := rand.Read(value); err != nil {
			return fmt.Errorf("cli: generate demo value: %w", err)
		}
		if err := source.AddItem(shamap.NewItem(key, value)); err != nil {
			// A colliding random key is astronomically unlikely at this
			// item count; treat it as a fatal misconfiguration rather
			// than silently skipping data.
			return fmt.Errorf("cli: seed source: %w", err)
		}
	}
	if !quiet {
		fmt.Printf("seeded source with %d items, root=%x\n", syncItemCount, source.RootHash())
	}

	sink, err := openSink(cfg.Storage)
	if err != nil {
		return err
	}
	defer sink.Close()

	dest := shamap.NewForSync(cfg.Storage.CacheSize)
	drainer, err := nodesink.NewDrainer(dest, sink, nodesink.DrainConfig{
		Interval: time.Duration(cfg.Storage.DrainMillis) * time.Millisecond,
		MaxBatch: cfg.Storage.DrainBatch,
	})
	if err != nil {
		return fmt.Errorf("cli: start drainer: %w", err)
	}
	defer drainer.Stop()

	opts := synctransport.Options{
		BatchSize:            cfg.Sync.BatchSize,
		MaxConcurrentFetches: cfg.Sync.MaxConcurrentFetches,
		RequestTimeout:       time.Duration(cfg.Sync.RequestTimeoutMillis) * time.Millisecond,
	}

	start := time.Now()
	if err := synctransport.Run(cmd.Context(), dest, &localSource{sm: source}, opts); err != nil {
		return fmt.Errorf("cli: sync: %w", err)
	}
	elapsed := time.Since(start)

	if err := source.DeepCompare(dest); err != nil {
		return fmt.Errorf("cli: destination diverged from source after sync: %w", err)
	}

	if !quiet {
		flushes, written, errs := drainer.Stats()
		fmt.Printf("sync converged in %s, dest root=%x\n", elapsed, dest.RootHash())
		fmt.Printf("drainer: %d flushes, %d nodes written, %d errors\n", flushes, written, errs)
	}
	return nil
}

func openSink(sc config.StorageConfig) (nodesink.Sink, error) {
	var sink nodesink.Sink
	var err error
	switch sc.Backend {
	case config.BackendLevelDB:
		sink, err = nodesink.OpenLevelDB(sc.Path)
	case config.BackendPebble:
		sink, err = nodesink.OpenPebble(sc.Path)
	case config.BackendMemory:
		sink = nodesink.NewMemory()
	default:
		return nil, fmt.Errorf("cli: unknown storage backend %q", sc.Backend)
	}
	if err != nil {
		return nil, err
	}
	if sc.Compress {
		return nodesink.NewCompressed(sink), nil
	}
	return sink, nil
}

// localSource adapts an in-process source SHAMap to synctransport.Source
// so the demo command doesn't need an actual network transport.
type localSource struct {
	sm *shamap.SHAMap
}

func (l *localSource) FetchRoot(ctx context.Context) ([]byte, shamap.Digest, error) {
	resp, err := l.sm.GetNodeFat(shamap.RootID)
	if err != nil {
		return nil, shamap.Digest{}, err
	}
	return resp.Blobs[0], l.sm.RootHash(), nil
}

func (l *localSource) FetchNodeFat(ctx context.Context, id shamap.NodeID) (shamap.FatResponse, error) {
	return l.sm.GetNodeFat(id)
}
