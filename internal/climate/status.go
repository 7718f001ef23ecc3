package climate

import (
	"sync"
	"time"
)

// ConnectionState is what the host shows in its connection banner
type ConnectionState string

const (
	StateConnected ConnectionState = "connected"
	StateDegraded  ConnectionState = "degraded"
	StateDemo      ConnectionState = "demo"
)

// Status summarises the health of the data path
type Status struct {
	State            ConnectionState `json:"state"`
	Source           string          `json:"source"`
	LastError        string          `json:"last_error,omitempty"`
	LastUpdate       *time.Time      `json:"last_update,omitempty"`
	LastCommandError string          `json:"last_command_error,omitempty"`
	PollFailures     int             `json:"poll_failures"`
}

type statusTracker struct {
	mu     sync.RWMutex
	status Status
}

func newStatusTracker(source string) *statusTracker {
	st := &statusTracker{status: Status{Source: source, State: StateDegraded}}
	if source == SourceDemo {
		st.status.State = StateDemo
	}
	return st
}

func (t *statusTracker) pollSucceeded(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Source != SourceDemo {
		t.status.State = StateConnected
	}
	t.status.LastError = ""
	t.status.LastUpdate = &at
	t.status.PollFailures = 0
}

func (t *statusTracker) pollFailed(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Source != SourceDemo {
		t.status.State = StateDegraded
	}
	t.status.LastError = err.Error()
	t.status.PollFailures++
}

func (t *statusTracker) commandFailed(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastCommandError = err.Error()
}

func (t *statusTracker) commandSucceeded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastCommandError = ""
}

func (t *statusTracker) get() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.status
	if t.status.LastUpdate != nil {
		at := *t.status.LastUpdate
		out.LastUpdate = &at
	}
	return out
}
