package breaker

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/internal/logging"
)

// Manager owns one Breaker per node id, bounded to maxCount with LRU
// eviction on overflow. Cleanup removes breakers idle longer than
// inactivityTimeout; the Manager starts no goroutine of its own, so a sweep
// runs only when Cleanup is called. The eviction list is built directly on
// container/list, the structure the standard library itself recommends
// for this purpose.
type Manager struct {
	mu       sync.Mutex
	opts     Options
	maxCount int

	byNode map[string]*list.Element // value: *entry
	order  *list.List               // front = most recently touched

	inactivityTimeout time.Duration
	cleanupGroup      singleflight.Group
	logger            logging.Logger
}

type entry struct {
	nodeID  string
	breaker *Breaker
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithMaxCount overrides the default bounded capacity of 1024.
func WithMaxCount(n int) ManagerOption {
	return func(m *Manager) { m.maxCount = n }
}

// WithInactivityTimeout configures the idle threshold used by Cleanup.
// Zero disables the sweep.
func WithInactivityTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.inactivityTimeout = d }
}

// WithLogger attaches a logger for eviction messages. Breaker state
// transitions are not logged by the Manager.
func WithLogger(l logging.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager builds a Manager with the given default Breaker Options,
// applied to every node unless the caller passes per-node Options through
// GetOrCreate's perNode parameter.
func NewManager(defaults Options, opts ...ManagerOption) *Manager {
	m := &Manager{
		opts:     defaults,
		maxCount: 1024,
		byNode:   make(map[string]*list.Element),
		order:    list.New(),
		logger:   logging.NewNoOp(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// GetOrCreate returns the breaker for nodeID, creating one lazily on first
// touch. perNode, if non-nil, overrides the manager's default Options for
// this node only.
func (m *Manager) GetOrCreate(nodeID string, perNode *Options) (*Breaker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.byNode[nodeID]; ok {
		m.order.MoveToFront(el)
		return el.Value.(*entry).breaker, nil
	}

	if len(m.byNode) >= m.maxCount {
		if !m.evictOneLocked() {
			return nil, errs.New(errs.CodeCircuitBreakerOpen, "breaker manager at capacity, no eligible eviction victim").
				WithContext(map[string]interface{}{"maxCount": m.maxCount})
		}
	}

	opts := m.opts
	if perNode != nil {
		opts = *perNode
	}
	b := New(opts)
	el := m.order.PushFront(&entry{nodeID: nodeID, breaker: b})
	m.byNode[nodeID] = el
	return b, nil
}

// evictOneLocked removes the least-recently-touched breaker that is not
// currently Open (an active breaker is still in use and skipped).
// Returns false if no eligible victim exists.
func (m *Manager) evictOneLocked() bool {
	for el := m.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.breaker.State() != Open {
			m.order.Remove(el)
			delete(m.byNode, e.nodeID)
			m.logger.Info(context.Background(), "circuit breaker evicted", "node_id", e.nodeID)
			return true
		}
	}
	return false
}

// Cleanup removes breakers idle longer than inactivityTimeout. Concurrent
// callers are collapsed into a single in-flight sweep via singleflight, so
// a new cleanup call while one is already running is a no-op.
func (m *Manager) Cleanup(ctx context.Context) {
	if m.inactivityTimeout <= 0 {
		return
	}
	_, _, _ = m.cleanupGroup.Do("sweep", func() (interface{}, error) {
		m.sweep()
		return nil, nil
	})
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next *list.Element
	for el := m.order.Back(); el != nil; el = next {
		next = el.Prev()
		e := el.Value.(*entry)
		if e.breaker.IdleSince() >= m.inactivityTimeout {
			m.order.Remove(el)
			delete(m.byNode, e.nodeID)
		}
	}
}

// Len reports how many breakers are currently tracked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byNode)
}
