package nodesink

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DirtySource is the half of shamap.SHAMap a Drainer depends on. It's an
// interface, not a concrete import, so this package stays usable by any
// producer that can hand over its dirty node blobs keyed by digest, not
// just the trie implementation it was built for.
type DirtySource interface {
	DrainDirtyBlobs() map[[32]byte][]byte
}

// DrainConfig controls how often and how much a Drainer flushes.
type DrainConfig struct {
	// Interval is the maximum time between flushes.
	Interval time.Duration

	// MaxBatch caps how many blobs go into one batch commit when the
	// sink is a BatchSink; a larger flush is split into several commits
	// within the same flush. Sinks without batch support get one Put per
	// blob and do not use it.
	MaxBatch int
}

// DefaultDrainConfig returns sensible defaults for a source under
// moderate sync load.
func DefaultDrainConfig() DrainConfig {
	return DrainConfig{Interval: 200 * time.Millisecond, MaxBatch: 4096}
}

func (c DrainConfig) validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("nodesink: drain interval must be positive")
	}
	if c.MaxBatch <= 0 {
		return fmt.Errorf("nodesink: drain max batch must be positive")
	}
	return nil
}

// Drainer periodically pulls newly materialized node blobs out of a
// DirtySource and persists them to a Sink, batching where the backend
// supports it. It's the bridge between the in-memory trie and whatever
// durable storage a deployment picks.
type Drainer struct {
	source DirtySource
	sink   Sink
	config DrainConfig

	stopCh chan struct{}
	wg     sync.WaitGroup

	flushes int64
	written int64
	errors  int64
}

// NewDrainer starts a background goroutine that flushes source's dirty
// blobs into sink every config.Interval. Call Stop to flush one last
// time and shut the goroutine down.
func NewDrainer(source DirtySource, sink Sink, config DrainConfig) (*Drainer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	d := &Drainer{
		source: source,
		sink:   sink,
		config: config,
		stopCh: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d, nil
}

func (d *Drainer) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			d.flush()
			return
		case <-ticker.C:
			d.flush()
		}
	}
}

func (d *Drainer) flush() {
	blobs := d.source.DrainDirtyBlobs()
	if len(blobs) == 0 {
		return
	}

	if batcher, ok := d.sink.(BatchSink); ok {
		d.flushBatched(batcher, blobs)
		return
	}

	for digest, blob := range blobs {
		if err := d.sink.Put(digest, blob); err != nil {
			atomic.AddInt64(&d.errors, 1)
			continue
		}
		atomic.AddInt64(&d.written, 1)
	}
	atomic.AddInt64(&d.flushes, 1)
}

func (d *Drainer) flushBatched(sink BatchSink, blobs map[[32]byte][]byte) {
	batch := sink.NewBatch()
	n := 0
	for digest, blob := range blobs {
		batch.Put(digest, blob)
		n++
		if n >= d.config.MaxBatch {
			if err := batch.Commit(); err != nil {
				atomic.AddInt64(&d.errors, 1)
			} else {
				atomic.AddInt64(&d.written, int64(n))
			}
			batch = sink.NewBatch()
			n = 0
		}
	}
	if n > 0 {
		if err := batch.Commit(); err != nil {
			atomic.AddInt64(&d.errors, 1)
		} else {
			atomic.AddInt64(&d.written, int64(n))
		}
	}
	atomic.AddInt64(&d.flushes, 1)
}

// Stop flushes any remaining dirty blobs and blocks until the background
// goroutine exits.
func (d *Drainer) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

// Stats reports cumulative counters for observability.
func (d *Drainer) Stats() (flushes, written, errs int64) {
	return atomic.LoadInt64(&d.flushes), atomic.LoadInt64(&d.written), atomic.LoadInt64(&d.errors)
}
