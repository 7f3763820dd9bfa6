package watch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// buffer collects paths that need uploading and releases them in batches
// once a debounce window elapses with no new activity. Editors and copy
// tools fire several filesystem events per save; the window collapses them
// into one upload. All methods are safe for concurrent use.
type buffer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	notify  chan struct{} // signaled on add while flushDebounced is active; nil otherwise
	logger  *slog.Logger
}

func newBuffer(logger *slog.Logger) *buffer {
	return &buffer{
		pending: make(map[string]struct{}),
		logger:  logger,
	}
}

// add marks a path as needing upload. Duplicate adds before the next flush
// collapse into one entry.
func (b *buffer) add(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[path] = struct{}{}
	b.signalNew()
}

// flushImmediate returns all pending paths sorted (deterministic upload
// order) and clears the buffer. Returns nil when empty.
func (b *buffer) flushImmediate() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}

	result := make([]string, 0, len(b.pending))
	for p := range b.pending {
		result = append(result, p)
	}

	sort.Strings(result)

	b.pending = make(map[string]struct{})

	b.logger.Debug("upload buffer flushed", "paths", len(result))

	return result
}

// size returns the number of distinct paths currently buffered.
func (b *buffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending)
}

// flushDebounced returns a channel that emits batches of paths after the
// debounce window elapses with no new adds. The timer resets on every add.
// The channel is closed when the context is canceled; any remaining paths
// are drained in a final batch first.
func (b *buffer) flushDebounced(ctx context.Context, debounce time.Duration) <-chan []string {
	out := make(chan []string, 1)

	b.mu.Lock()
	b.notify = make(chan struct{}, 1)
	b.mu.Unlock()

	go b.debounceLoop(ctx, debounce, out)

	return out
}

// debounceLoop is the goroutine driving flushDebounced. It waits for
// new-path signals, resets the debounce timer, and flushes when the timer
// expires.
func (b *buffer) debounceLoop(ctx context.Context, debounce time.Duration, out chan<- []string) {
	defer close(out)

	timer := time.NewTimer(debounce)
	timer.Stop() // start idle, nothing buffered yet
	defer timer.Stop()

	timerActive := false

	for {
		select {
		case <-ctx.Done():
			// Drain remaining paths. Non-blocking send because the consumer
			// may already have stopped reading.
			if batch := b.flushImmediate(); batch != nil {
				select {
				case out <- batch:
				default:
					b.logger.Warn("final drain discarded, output channel full",
						"paths", len(batch))
				}
			}

			return

		case _, ok := <-b.notify:
			if !ok {
				return
			}

			// New path arrived, reset the debounce timer.
			if !timer.Stop() && timerActive {
				<-timer.C
			}

			timer.Reset(debounce)
			timerActive = true

		case <-timer.C:
			timerActive = false

			if batch := b.flushImmediate(); batch != nil {
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// signalNew sends a non-blocking notification to the debounce goroutine.
// Called while the mutex is held. The notify channel is nil until
// flushDebounced is called, so one-shot use pays no cost.
func (b *buffer) signalNew() {
	if b.notify == nil {
		return
	}

	select {
	case b.notify <- struct{}{}:
	default:
		// Already signaled, the debounce goroutine has not consumed yet.
	}
}
