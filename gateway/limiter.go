package gateway

// Limiter caps the number of in-flight calls to a single provider. A nil
// semaphore means unlimited. Exhaustion is reported by TryAcquire so callers
// can fail fast as rate_limited instead of queueing; retry policy provides
// the backpressure.
type Limiter struct {
	sem chan struct{}
}

// NewLimiter creates a Limiter allowing up to n concurrent calls. Zero or
// negative n disables the limit.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		return &Limiter{}
	}
	return &Limiter{sem: make(chan struct{}, n)}
}

// TryAcquire claims a slot without blocking, reporting whether one was free.
func (l *Limiter) TryAcquire() bool {
	if l.sem == nil {
		return true
	}
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot claimed by TryAcquire.
func (l *Limiter) Release() {
	if l.sem == nil {
		return
	}
	<-l.sem
}

// InFlight returns the number of currently claimed slots.
func (l *Limiter) InFlight() int {
	if l.sem == nil {
		return 0
	}
	return len(l.sem)
}
