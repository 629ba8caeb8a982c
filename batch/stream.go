package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphkit/cyphercoord/config"
	"github.com/graphkit/cyphercoord/engine"
)

// Stream paginates a single query's results via repeated SKIP/LIMIT
// queries, since the engine contract (engine.RowIterator) does not expose
// a resumable cursor across calls.
type Stream struct {
	ID       string
	cypher   string
	pageSize int
	conn     engine.Connection

	mu         sync.Mutex
	offset     int
	done       bool
	lastAccess time.Time
}

func newStream(conn engine.Connection, cypher string, pageSize int) *Stream {
	return &Stream{ID: uuid.NewString(), conn: conn, cypher: cypher, pageSize: pageSize, lastAccess: time.Now()}
}

// Page is one poll's worth of rows plus whether the stream is now
// exhausted.
type Page struct {
	Rows     []map[string]interface{}
	Singleton bool
	Done     bool
}

// Poll fetches the next page. singletonLimit controls the emission shape
// spec §4.4 requires: pages at or below the limit are marked Singleton so
// the caller emits rows one at a time; larger pages are marked for
// chunk emission.
func (s *Stream) Poll(ctx context.Context, singletonLimit int) (Page, error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return Page{Done: true}, nil
	}
	offset := s.offset
	s.mu.Unlock()

	paged := fmt.Sprintf("%s SKIP %d LIMIT %d", s.cypher, offset, s.pageSize)
	it, err := s.conn.Query(ctx, paged)
	if err != nil {
		return Page{}, err
	}
	defer it.Close()

	var rows []map[string]interface{}
	for it.Next(ctx) {
		rows = append(rows, map[string]interface{}(it.Row()))
	}
	if err := it.Err(); err != nil {
		return Page{}, err
	}

	s.mu.Lock()
	s.offset += len(rows)
	s.lastAccess = time.Now()
	exhausted := len(rows) < s.pageSize
	s.done = exhausted
	s.mu.Unlock()

	return Page{Rows: rows, Singleton: len(rows) <= singletonLimit, Done: exhausted}, nil
}

// IdleFor reports how long it has been since the last Poll.
func (s *Stream) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastAccess)
}

// Done reports whether the stream has been fully consumed.
func (s *Stream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// StreamManager tracks open streams and periodically sweeps ones that have
// gone idle past cfg.StreamIdleExpiry.
type StreamManager struct {
	cfg     config.BatchConfig
	mu      sync.Mutex
	streams map[string]*Stream

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewStreamManager builds a StreamManager from configuration.
func NewStreamManager(cfg config.BatchConfig) *StreamManager {
	return &StreamManager{cfg: cfg, streams: make(map[string]*Stream), stopCh: make(chan struct{})}
}

// Open registers a new paginated stream over cypher and returns it.
func (sm *StreamManager) Open(conn engine.Connection, cypher string, pageSize int) *Stream {
	if pageSize <= 0 {
		pageSize = 100
	}
	s := newStream(conn, cypher, pageSize)
	sm.mu.Lock()
	sm.streams[s.ID] = s
	sm.mu.Unlock()
	return s
}

// Get retrieves an open stream by id.
func (sm *StreamManager) Get(id string) (*Stream, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.streams[id]
	return s, ok
}

// Close removes a stream from the registry.
func (sm *StreamManager) Close(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.streams, id)
}

// Start launches the background sweep goroutine, defaulting to an hourly
// interval per spec §4.4 if unconfigured.
func (sm *StreamManager) Start(ctx context.Context) {
	interval := sm.cfg.StreamSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	sm.wg.Add(1)
	go func() {
		defer sm.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sm.stopCh:
				return
			case <-ticker.C:
				sm.sweep()
			}
		}
	}()
}

// Stop halts the sweep goroutine.
func (sm *StreamManager) Stop() {
	close(sm.stopCh)
	sm.wg.Wait()
}

func (sm *StreamManager) sweep() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	expiry := sm.cfg.StreamIdleExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	for id, s := range sm.streams {
		if s.Done() || s.IdleFor() > expiry {
			delete(sm.streams, id)
		}
	}
}

// OpenCount returns how many streams are currently registered.
func (sm *StreamManager) OpenCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.streams)
}
