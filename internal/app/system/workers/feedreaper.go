// internal/app/system/workers/feedreaper.go
package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// IdleCloser closes feeds whose consumer stopped reading. It is satisfied
// by *chat.Synchronizer.
type IdleCloser interface {
	CloseIdle(idle time.Duration) int
	OpenFeeds() int
}

// FeedReaper is a background worker that closes chat feeds whose consumer
// has left a snapshot unread for too long, so an abandoned websocket or
// client never pins a store listener.
type FeedReaper struct {
	feeds         IdleCloser
	log           *zap.Logger
	interval      time.Duration
	idleThreshold time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewFeedReaper creates a new feed reaper.
//
// Parameters:
//   - feeds: the chat synchronizer
//   - logger: zap logger for logging
//   - interval: how often to sweep (e.g., 1 minute)
//   - idleThreshold: how long a snapshot may sit unread (e.g., 5 minutes)
func NewFeedReaper(feeds IdleCloser, logger *zap.Logger, interval, idleThreshold time.Duration) *FeedReaper {
	return &FeedReaper{
		feeds:         feeds,
		log:           logger,
		interval:      interval,
		idleThreshold: idleThreshold,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *FeedReaper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("feed reaper started",
		zap.Duration("interval", w.interval),
		zap.Duration("idle_threshold", w.idleThreshold))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *FeedReaper) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("feed reaper stopped")
}

func (w *FeedReaper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one pass and returns how many feeds were closed.
func (w *FeedReaper) Sweep() int {
	n := w.feeds.CloseIdle(w.idleThreshold)
	if n > 0 {
		w.log.Info("closed idle chat feeds",
			zap.Int("count", n),
			zap.Int("open_feeds", w.feeds.OpenFeeds()))
	}
	return n
}
