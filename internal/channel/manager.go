package channel

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rghv234/wolffia/pkg/token"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateBackoff      State = "backoff"
)

// Status is the externally visible connection state. Attempt is only
// meaningful in StateBackoff.
type Status struct {
	State   State `json:"state"`
	Attempt int   `json:"attempt,omitempty"`
}

const maxAttempts = 5

type conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

type dialFunc func(ctx context.Context, endpoint string) (conn, error)

// Manager owns the lifecycle of the persistent inbound event stream:
// connect, read, reconnect with linear backoff, and idempotent close.
type Manager struct {
	endpoint   string
	credential string
	baseDelay  time.Duration
	dial       dialFunc

	mu      sync.Mutex
	state   State
	attempt int
	conn    conn
	cancel  context.CancelFunc
	running bool
	closed  bool

	events chan Event
}

func NewManager(endpoint, credential string, baseDelay time.Duration) *Manager {
	m := &Manager{
		endpoint:   endpoint,
		credential: credential,
		baseDelay:  baseDelay,
		state:      StateDisconnected,
		events:     make(chan Event, 256),
	}
	m.dial = m.dialWebSocket
	return m
}

// Events delivers remote-origin changes. Keep-alives never appear here.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{State: m.state}
	if m.state == StateBackoff {
		s.Attempt = m.attempt
	}
	return s
}

// Connect starts the connection loop. Calling it while the loop is already
// running is a no-op; calling it after the attempt cap was exhausted (the
// external "back online" signal) restarts from attempt zero.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed || m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.attempt = 0
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	if token.IsStale(m.credential, time.Minute) {
		log.Printf("[Channel] sync credential is stale; connection will likely be refused")
	}

	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	for {
		m.setState(StateConnecting)

		c, err := m.dial(ctx, m.endpoint)
		if err != nil {
			if ctx.Err() != nil {
				m.setState(StateDisconnected)
				return
			}
			if !m.backoff(ctx) {
				return
			}
			continue
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			c.Close()
			return
		}
		m.conn = c
		m.state = StateConnected
		m.attempt = 0
		m.mu.Unlock()
		log.Printf("[Channel] connected to %s", m.endpoint)

		if !m.readLoop(ctx, c) {
			return
		}
	}
}

// readLoop returns false when the loop should stop for good.
func (m *Manager) readLoop(ctx context.Context, c conn) bool {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			m.conn = nil
			m.mu.Unlock()
			if closed || ctx.Err() != nil {
				m.setState(StateDisconnected)
				return false
			}
			log.Printf("[Channel] read error: %v", err)
			return m.backoff(ctx)
		}

		event, err := parseMessage(data)
		if err != nil {
			log.Printf("[Channel] dropping message: %v", err)
			continue
		}
		if event == nil {
			continue
		}

		select {
		case m.events <- *event:
		case <-ctx.Done():
			m.setState(StateDisconnected)
			return false
		}
	}
}

// backoff waits base*n before the next attempt. Returns false once the
// attempt cap is reached; the channel then stays Disconnected until an
// explicit connectivity signal calls Connect again.
func (m *Manager) backoff(ctx context.Context) bool {
	m.mu.Lock()
	m.attempt++
	attempt := m.attempt
	if attempt > maxAttempts {
		m.state = StateDisconnected
		m.mu.Unlock()
		log.Printf("[Channel] giving up after %d attempts; waiting for connectivity signal", maxAttempts)
		return false
	}
	m.state = StateBackoff
	m.mu.Unlock()

	delay := m.baseDelay * time.Duration(attempt)
	log.Printf("[Channel] reconnecting in %v (attempt %d/%d)", delay, attempt, maxAttempts)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		m.setState(StateDisconnected)
		return false
	case <-timer.C:
		return true
	}
}

// Close tears the channel down. It is idempotent and always leaves the
// manager Disconnected regardless of current state.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.state = StateDisconnected
	cancel := m.cancel
	c := m.conn
	m.conn = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		c.Close()
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// dialWebSocket passes the credential in the connection URI: the browser
// websocket transport cannot set arbitrary headers.
func (m *Manager) dialWebSocket(ctx context.Context, endpoint string) (conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", m.credential)
	u.RawQuery = q.Encode()

	c, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}
