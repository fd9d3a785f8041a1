package walker

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/whatsoevan/orphdat/internal/store"
)

// HashJob is one file queued for hashing.
type HashJob struct {
	Path string
}

// HashResult pairs a job's outcome with its originating path.
type HashResult struct {
	Path   string
	Record store.HashRecord
	Err    error
}

// ProgressFunc is invoked once per completed job, from a worker goroutine;
// implementations must be safe for concurrent use.
type ProgressFunc func()

// HashAll resolves hashes for every path in paths using a bounded worker
// pool, preserving input order in the returned slice regardless of which
// worker finishes first. Files in the same directory are resolved one at a
// time, since each resolve may rewrite that directory's catalog.
func HashAll(ctx context.Context, s *store.Store, paths []string, workers int, progress ProgressFunc) []HashResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}
	if workers < 1 {
		workers = 1
	}

	type job struct {
		index int
		path  string
	}
	type indexedResult struct {
		index  int
		result HashResult
	}

	jobs := make(chan job, workers*2)
	results := make(chan indexedResult, workers*2)

	var locksMu sync.Mutex
	dirLocks := map[string]*sync.Mutex{}
	dirLock := func(path string) *sync.Mutex {
		locksMu.Lock()
		defer locksMu.Unlock()
		dir := filepath.Dir(path)
		if dirLocks[dir] == nil {
			dirLocks[dir] = &sync.Mutex{}
		}
		return dirLocks[dir]
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				mu := dirLock(j.path)
				mu.Lock()
				record, err := s.Resolve(j.path, store.ResolveOptions{})
				mu.Unlock()
				select {
				case results <- indexedResult{index: j.index, result: HashResult{Path: j.path, Record: record, Err: err}}:
					if progress != nil {
						progress()
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, p := range paths {
			select {
			case jobs <- job{index: i, path: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]HashResult, len(paths))
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return ordered
			}
			ordered[r.index] = r.result
		case <-ctx.Done():
			return ordered
		}
	}
}
