package record

import "sync"

// MemorySink keeps rows in memory. FailAt makes the Nth Append (1-based)
// return Err; zero never fails.
type MemorySink struct {
	FailAt int
	Err    error

	mu      sync.Mutex
	header  bool
	appends int
	rows    []Result
	closed  bool
}

// Exists reports whether the header has been written.
func (m *MemorySink) Exists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.header
}

// WriteHeader marks the header as written.
func (m *MemorySink) WriteHeader() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.header = true
	return nil
}

// Append stores r.
func (m *MemorySink) Append(r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSinkClosed
	}
	m.appends++
	if m.FailAt > 0 && m.appends == m.FailAt {
		return m.Err
	}
	m.rows = append(m.rows, r)
	return nil
}

// Close marks the sink closed.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Rows returns a copy of the stored rows.
func (m *MemorySink) Rows() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Result(nil), m.rows...)
}
