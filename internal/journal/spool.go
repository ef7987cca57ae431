package journal

import "sync"

// spool is a thread-safe ring of envelopes awaiting the writer. It
// doubles its capacity when it reaches 70% full, so a burst of events
// during a database stall grows the spool instead of dropping frames.
type spool struct {
	mu       sync.Mutex
	buf      []row
	head     int
	tail     int
	count    int
	capacity int
	closed   bool

	enqueued int64
	drained  int64
	resizes  int
}

func newSpool(initialCapacity int) *spool {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &spool{
		buf:      make([]row, initialCapacity),
		capacity: initialCapacity,
	}
}

// push appends a row. Returns false once the spool is closed.
func (s *spool) push(r row) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	threshold := (s.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if s.count+1 >= threshold {
		s.grow()
	}

	s.buf[s.tail] = r
	s.tail = (s.tail + 1) % s.capacity
	s.count++
	s.enqueued++
	return true
}

// drain removes up to max rows, or everything when max <= 0.
func (s *spool) drain(max int) []row {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return nil
	}

	n := s.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]row, n)
	for i := 0; i < n; i++ {
		out[i] = s.buf[s.head]
		s.buf[s.head] = row{}
		s.head = (s.head + 1) % s.capacity
	}
	s.count -= n
	s.drained += int64(n)
	return out
}

func (s *spool) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *spool) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// grow doubles capacity. Caller holds the lock.
func (s *spool) grow() {
	newBuf := make([]row, s.capacity*2)

	if s.count > 0 {
		if s.head < s.tail {
			copy(newBuf, s.buf[s.head:s.tail])
		} else {
			n := copy(newBuf, s.buf[s.head:])
			copy(newBuf[n:], s.buf[:s.tail])
		}
	}

	s.buf = newBuf
	s.head = 0
	s.tail = s.count
	s.capacity *= 2
	s.resizes++
}
