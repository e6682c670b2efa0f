package stream

import "sync"

// maxTotalStreams caps connections across all IPs. The dashboard is an
// observatory-internal tool; anything near this number is a runaway
// reconnect loop, not real usage.
const maxTotalStreams = 256

// streamLimiter bounds concurrent SSE subscribers, per client IP and in
// total.
type streamLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	open     int
	maxPerIP int
}

func newStreamLimiter(maxPerIP int) *streamLimiter {
	return &streamLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
	}
}

// acquire registers a connection for ip. It fails when either the
// per-IP or the global ceiling is already met.
func (l *streamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open >= maxTotalStreams || l.perIP[ip] >= l.maxPerIP {
		return false
	}
	l.perIP[ip]++
	l.open++
	return true
}

// release drops a connection for ip, forgetting the IP once idle.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.open--
	l.perIP[ip]--
	if l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
}

// count returns the open connections for ip.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}
