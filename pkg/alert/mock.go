package alert

import "sync"

// MockSink implements Sink for testing. It counts Beep and Stop calls.
type MockSink struct {
	mu     sync.Mutex
	beeps  int
	stops  int
	closed bool
}

// NewMockSink creates a mock sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Beep records the call.
func (m *MockSink) Beep() {
	m.mu.Lock()
	m.beeps++
	m.mu.Unlock()
}

// Beeps returns the number of Beep calls.
func (m *MockSink) Beeps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beeps
}

// Stop records the call.
func (m *MockSink) Stop() {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
}

// Stops returns the number of Stop calls.
func (m *MockSink) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Closed reports whether Close was called.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
