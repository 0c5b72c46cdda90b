package audio

import "sync"

// Memory is an in-process endpoint. It backs dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	volume  float64
	mute    bool
	open    bool
	openErr error
	setErr  error
	writes  int
}

// NewMemory creates a Memory endpoint starting at volume.
func NewMemory(volume float64) *Memory {
	return &Memory{volume: Clamp(volume)}
}

// SetOpenError makes subsequent Open calls fail with err.
func (m *Memory) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// SetWriteError makes subsequent writes fail with err.
func (m *Memory) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
}

func (m *Memory) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.open = true
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *Memory) ScalarVolume() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, ErrNotOpen
	}
	return m.volume, nil
}

func (m *Memory) SetScalarVolume(v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrNotOpen
	}
	if m.setErr != nil {
		return m.setErr
	}
	m.volume = Clamp(v)
	m.writes++
	return nil
}

func (m *Memory) SetMute(mute bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrNotOpen
	}
	if m.setErr != nil {
		return m.setErr
	}
	m.mute = mute
	m.writes++
	return nil
}

// State returns the current volume and mute flag regardless of open state.
func (m *Memory) State() (volume float64, mute bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume, m.mute
}

// IsOpen reports whether the endpoint is open.
func (m *Memory) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Writes returns the number of successful SetScalarVolume and SetMute calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
