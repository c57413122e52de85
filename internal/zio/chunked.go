package zio

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/sync/errgroup"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/dtype"
)

// writeChunked drains iter, detecting duplicate chunk coordinates via a
// bitset sized to the (possibly unlimited-capped) chunk grid, and writing
// each chunk's payload under its Store.ChunkPath location (spec.md §4.4).
// Writes run in parallel when opts.ParallelWorkers > 1 and the iterator
// declares itself safe for that.
func (e *Engine) writeChunked(p string, d api.DType, iter ChunkIterator, opts api.Options) error {
	grid := chunkGridSize(iter.Shape(), iter.ChunkShape())
	seen := bitset.New(grid)

	c, err := dtype.NewCodec(string(d))
	if err != nil {
		return api.NewPathError("write", p, err)
	}

	if opts.ParallelWorkers > 1 && iter.ParallelSafe() {
		return e.writeChunkedParallel(p, c, iter, seen, grid, opts)
	}
	return e.writeChunkedSequential(p, c, iter, seen, grid, opts)
}

func (e *Engine) writeChunkedSequential(p string, c *dtype.Codec, iter ChunkIterator, seen *bitset.BitSet, grid uint, opts api.Options) error {
	total := 0
	for {
		chunk, ok, err := iter.Next()
		if err != nil {
			return api.NewPathError("write", p, err)
		}
		if !ok {
			break
		}
		if err := e.writeOneChunk(p, c, chunk, seen, grid); err != nil {
			return err
		}
		total++
		reportProgress(opts, p, total)
	}
	return nil
}

// writeChunkedParallel fans chunk writes out across a bounded pool of
// goroutines (golang.org/x/sync/errgroup). GOMAXPROCS is capped once for
// the whole pool's lifetime, not per chunk — the Go analogue of the BLAS
// thread-pool capping a native chunked-array backend would otherwise
// need, since Go has no separate linear-algebra thread pool to bound
// (spec.md §5) — and restored when the pool drains. The mutex below
// guards only the shared seen/total bookkeeping; each worker's codec
// encode and file write run unlocked so writes are actually concurrent.
func (e *Engine) writeChunkedParallel(p string, c *dtype.Codec, iter ChunkIterator, seen *bitset.BitSet, grid uint, opts api.Options) error {
	prevProcs := runtime.GOMAXPROCS(0)
	runtime.GOMAXPROCS(opts.ParallelWorkers)
	defer runtime.GOMAXPROCS(prevProcs)

	g, ctx := errgroup.WithContext(context.Background())
	sem := make(chan struct{}, opts.ParallelWorkers)

	var mu sync.Mutex
	total := 0

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		chunk, ok, err := iter.Next()
		if err != nil {
			_ = g.Wait()
			return api.NewPathError("write", p, err)
		}
		if !ok {
			break
		}

		sem <- struct{}{}
		chunk := chunk
		g.Go(func() error {
			defer func() { <-sem }()

			mu.Lock()
			idx, err := linearChunkIndex(chunk.Coords, grid)
			if err == nil && seen.Test(idx) {
				err = api.ErrOverlappingChunks
			}
			if err == nil {
				seen.Set(idx)
			}
			mu.Unlock()
			if err != nil {
				return api.NewPathError("write", p, err)
			}

			if err := e.encodeAndWriteChunk(p, c, chunk); err != nil {
				return err
			}

			mu.Lock()
			total++
			n := total
			mu.Unlock()
			reportProgress(opts, p, n)
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) writeOneChunk(p string, c *dtype.Codec, chunk Chunk, seen *bitset.BitSet, grid uint) error {
	idx, err := linearChunkIndex(chunk.Coords, grid)
	if err != nil {
		return api.NewPathError("write", p, err)
	}
	if seen.Test(idx) {
		return api.NewPathError("write", p, api.ErrOverlappingChunks)
	}
	seen.Set(idx)
	return e.encodeAndWriteChunk(p, c, chunk)
}

func (e *Engine) encodeAndWriteChunk(p string, c *dtype.Codec, chunk Chunk) error {
	encoded, err := encodeBulk(c, chunk.Data)
	if err != nil {
		return api.NewPathError("write", p, err)
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return err
	}
	return writeJSONFile(e.Store, e.Store.ChunkPath(p, chunk.Coords), raw)
}

func chunkGridSize(shape []int64, chunkShape []int) uint {
	total := uint(1)
	for i, dim := range shape {
		cs := int64(1)
		if i < len(chunkShape) && chunkShape[i] > 0 {
			cs = int64(chunkShape[i])
		}
		n := dim
		if n < 0 {
			n = cs * 4096 // unlimited dimension: cap the grid generously
		}
		count := uint((n + cs - 1) / cs)
		if count == 0 {
			count = 1
		}
		total *= count
	}
	if total == 0 {
		total = 1
	}
	return total
}

func linearChunkIndex(coords []int, grid uint) (uint, error) {
	idx := uint(0)
	for _, c := range coords {
		if c < 0 {
			return 0, fmt.Errorf("%w: negative chunk coordinate %d", api.ErrInternalInvariant, c)
		}
		idx = idx*31 + uint(c)
	}
	return idx % grid, nil
}
