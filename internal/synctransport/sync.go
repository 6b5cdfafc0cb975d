// Package synctransport drives the pull-based sync loop between a
// destination SHAMap and a remote source: it turns getMissingNodes
// output into batched getNodeFat round trips and feeds the responses
// back into addKnownNode, all outside the core's critical section.
package synctransport

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ywzqhl/triesync/internal/core/shamap"
)

// Source is the network-facing half of a sync partner: whatever
// transport is in play (RPC, a peer connection, an in-process map for
// tests), it must expose these two calls.
type Source interface {
	FetchRoot(ctx context.Context) (blob []byte, hash shamap.Digest, err error)
	FetchNodeFat(ctx context.Context, id shamap.NodeID) (shamap.FatResponse, error)
}

// Options configures one sync run.
type Options struct {
	// BatchSize is how many missing nodes one getMissingNodes call asks
	// for at a time.
	BatchSize int

	// MaxConcurrentFetches bounds how many FetchNodeFat calls are
	// in flight against Source at once.
	MaxConcurrentFetches int

	// RequestTimeout bounds a single FetchNodeFat call; a fetch that
	// exceeds it is abandoned, not retried inline — the next
	// getMissingNodes pass will simply ask for the same node again.
	RequestTimeout time.Duration
}

// Run drives dest to convergence against source: install the root, then
// repeatedly fetch and install missing nodes until none remain. It
// returns nil once dest's structure is complete relative to the root it
// installed; the caller is responsible for verifying dest's root digest
// matches whatever out-of-band value it expected before trusting the
// data.
func Run(ctx context.Context, dest *shamap.SHAMap, source Source, opts Options) error {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.MaxConcurrentFetches <= 0 {
		opts.MaxConcurrentFetches = 8
	}

	dest.SetSyncing()
	defer dest.ClearSyncing()

	if !dest.HasRoot() {
		rootBlob, rootHash, err := source.FetchRoot(ctx)
		if err != nil {
			return fmt.Errorf("synctransport: fetch root: %w", err)
		}
		if err := dest.AddRootNode(rootBlob, &rootHash); err != nil {
			return fmt.Errorf("synctransport: install root: %w", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		missing := dest.GetMissingNodes(opts.BatchSize)
		if len(missing) == 0 {
			return nil
		}

		responses, err := fetchAll(ctx, source, missing, opts)
		if err != nil {
			return err
		}

		for _, resp := range responses {
			for i, id := range resp.IDs {
				if err := dest.AddKnownNode(id, resp.Blobs[i]); err != nil {
					// Non-fatal: a rejected node (stale parent, transient
					// corruption) is simply requested again on the next
					// getMissingNodes pass.
					log.Printf("synctransport: addKnownNode(%s): %v", id, err)
				}
			}
		}
	}
}

// fetchAll issues one FetchNodeFat per missing node, bounded to
// opts.MaxConcurrentFetches in flight at a time. A single node's fetch
// failing (including timing out) does not abort the round; it's simply
// absent from the returned slice and re-requested on the next pass.
func fetchAll(ctx context.Context, source Source, missing []shamap.MissingNode, opts Options) ([]shamap.FatResponse, error) {
	responses := make([]shamap.FatResponse, len(missing))
	ok := make([]bool, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrentFetches)

	for i, m := range missing {
		i, m := i, m
		g.Go(func() error {
			fetchCtx := gctx
			var cancel context.CancelFunc
			if opts.RequestTimeout > 0 {
				fetchCtx, cancel = context.WithTimeout(gctx, opts.RequestTimeout)
				defer cancel()
			}
			resp, err := source.FetchNodeFat(fetchCtx, m.ID)
			if err != nil {
				log.Printf("synctransport: fetchNodeFat(%s): %v", m.ID, err)
				return nil
			}
			responses[i] = resp
			ok[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("synctransport: fetch round: %w", err)
	}

	out := responses[:0]
	for i, present := range ok {
		if present {
			out = append(out, responses[i])
		}
	}
	return out, nil
}
