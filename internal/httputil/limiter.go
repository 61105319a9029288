package httputil

import "sync"

// ConnLimiter caps long-lived connections (SSE streams, WebSocket sessions)
// per client key and in total.
type ConnLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewConnLimiter creates a limiter. Non-positive limits disable that cap.
func NewConnLimiter(maxPerIP, maxTotal int) *ConnLimiter {
	return &ConnLimiter{
		open:     make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// Acquire claims a slot for key. When ok is false the caller must reject the
// connection; otherwise release must be called exactly once when it ends.
// Extra release calls are ignored.
func (l *ConnLimiter) Acquire(key string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxTotal > 0 && l.total >= l.maxTotal {
		return nil, false
	}
	if l.maxPerIP > 0 && l.open[key] >= l.maxPerIP {
		return nil, false
	}
	l.open[key]++
	l.total++

	var once sync.Once
	return func() { once.Do(func() { l.release(key) }) }, true
}

func (l *ConnLimiter) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total--
	if l.open[key]--; l.open[key] <= 0 {
		delete(l.open, key)
	}
}

// Count returns the open connections for key.
func (l *ConnLimiter) Count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[key]
}

// Active returns the open connections across all keys.
func (l *ConnLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
