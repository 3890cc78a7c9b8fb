// Package sync implements the client-side synchronization agent.
//
// An Agent maintains an auto-reconnecting websocket subscription to the
// server's change feed and mirrors the full task list locally. Change
// notifications are treated as hints only: on every notification the agent
// re-fetches the complete list over REST and atomically replaces its local
// view, so delivery order, duplicates, and missed frames all converge to the
// same result.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tasksync/tasksync/pkg/client"
	"github.com/tasksync/tasksync/pkg/logger"
	"github.com/tasksync/tasksync/pkg/models"
)

// ErrCredentialExpired is returned when the server refuses the websocket
// handshake because the session token is missing, invalid, or expired.
// Reconnection stops permanently on this error; the caller must obtain a
// fresh token and start a new agent.
var ErrCredentialExpired = errors.New("session credential rejected by server")

type State int

const (
	StateUnknown State = iota
	StateDisconnected
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (state State) String() string {
	switch state {
	case StateUnknown:
		return "Unknown"
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(newState State) error {
	switch s {
	case StateDisconnected:
		switch newState {
		case StateConnecting, StateClosing, StateDisconnected:
			return nil
		}
	case StateConnecting:
		switch newState {
		// Connecting to Closing happens when the agent is torn down while a
		// reconnect attempt is in flight.
		case StateConnected, StateClosing, StateDisconnected:
			return nil
		}
	case StateConnected:
		switch newState {
		// Connected to Connecting is possible when the connection is lost
		// after the connection is established.
		case StateConnecting, StateClosing, StateDisconnected:
			return nil
		}
	case StateClosing:
		if newState == StateClosed {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}

// Agent is an auto-reconnecting subscriber that keeps a local replica of the
// server's task list. It is safe for concurrent use.
type Agent struct {
	// Backoff controls the delay between reconnection attempts.
	Backoff Backoff

	api    *client.Client
	wsURL  string
	logger logger.Logger

	// onChange, when set, is invoked with the new snapshot after every
	// successful reconciliation.
	onChange func([]*models.Task)

	// connCloseCh signals that the agent is being closed
	connCloseCh chan int

	// reconnLoopCloseCh is closed when the reconnection loop has stopped.
	// This is used solely to ensure that the reconnection loop stops
	// before Close() returns.
	reconnLoopCloseCh chan int

	// reconnectCh is signaled by the read loop when the connection drops.
	reconnectCh chan int

	// once ensures the reconnection loop is started only once, on the
	// first successful Connect.
	once sync.Once

	// stateMu protects state, expired and sock.
	stateMu sync.Mutex
	state   State
	expired bool
	sock    *websocket.Conn

	// tasksMu protects the local task snapshot.
	tasksMu sync.RWMutex
	tasks   []*models.Task
}

// Option configures an Agent.
type Option func(*Agent)

// WithOnChange registers a callback invoked with the new task snapshot after
// every successful reconciliation. The callback must not block; it runs on
// the agent's read loop.
func WithOnChange(fn func([]*models.Task)) Option {
	return func(a *Agent) {
		a.onChange = fn
	}
}

// WithBackoff overrides the reconnect delay policy.
func WithBackoff(b Backoff) Option {
	return func(a *Agent) {
		a.Backoff = b
	}
}

// New creates an agent for the server behind api. The client must already
// hold a session token from Login; the same token authenticates the
// websocket handshake.
//
// baseURL is the server's HTTP base URL (e.g. "http://localhost:8080"); the
// agent derives the websocket endpoint from it.
func New(api *client.Client, baseURL string, log logger.Logger, opts ...Option) (*Agent, error) {
	wsURL, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		Backoff:     DefaultBackoff(),
		api:         api,
		wsURL:       wsURL,
		logger:      log,
		state:       StateDisconnected,
		reconnectCh: make(chan int, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// websocketURL derives the change-feed endpoint from an HTTP base URL.
func websocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in base URL", u.Scheme)
	}
	// A base URL may carry a path prefix (reverse-proxy subpath); the change
	// feed hangs off it.
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

func (a *Agent) transitionTo(newState State) error {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if err := a.state.validateTransitionTo(newState); err != nil {
		return err
	}

	a.state = newState
	a.logger.Debug("sync.Agent state transitioned", "new_state", newState)

	return nil
}

// State returns the current connection state.
func (a *Agent) State() State {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

// IsClosed returns true once the agent is closed. A closed agent cannot be
// reused.
func (a *Agent) IsClosed() bool {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state == StateClosed
}

// Expired returns true if reconnection stopped permanently because the
// server rejected the session credential.
func (a *Agent) Expired() bool {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.expired
}

// Tasks returns the current local snapshot, ordered by creation.
func (a *Agent) Tasks() []*models.Task {
	a.tasksMu.RLock()
	defer a.tasksMu.RUnlock()

	out := make([]*models.Task, len(a.tasks))
	copy(out, a.tasks)
	return out
}

// Connect establishes the websocket subscription, performs the initial full
// re-fetch, and starts the reconnection loop.
//
// It returns an error if the initial connection fails. The caller is
// responsible for handling it: an initial failure is often misconfiguration
// (wrong URL, bad credentials) that no amount of retrying fixes.
func (a *Agent) Connect(ctx context.Context) error {
	if err := a.transitionTo(StateConnecting); err != nil {
		return err
	}

	sock, err := a.dial(ctx)
	if err != nil {
		if stateErr := a.transitionTo(StateDisconnected); stateErr != nil {
			a.logger.Error("BUG: sync.Agent failed to transition to disconnected state", "error", stateErr)
		}
		return err
	}

	a.stateMu.Lock()
	a.sock = sock
	a.stateMu.Unlock()

	// A mutation committed while we were offline produces no notification
	// frame on this connection, so every (re)connect starts from a full
	// re-fetch.
	if err := a.refresh(ctx); err != nil {
		a.logger.Warn("sync.Agent initial fetch failed, keeping previous view", "error", err)
	}

	a.once.Do(func() {
		a.logger.Debug("sync.Agent is starting reconnection loop")

		a.connCloseCh = make(chan int, 1)
		a.reconnLoopCloseCh = make(chan int, 1)

		go a.reconnectionLoop()
	})

	if err := a.transitionTo(StateConnected); err != nil {
		// Close raced with this attempt; drop the fresh socket.
		_ = sock.Close()
		return fmt.Errorf("sync.Agent closed during connect: %w", err)
	}

	go a.readLoop(sock)

	return nil
}

// dial performs the websocket handshake, presenting the session token as the
// access_token query parameter. A 401 refusal maps to ErrCredentialExpired.
func (a *Agent) dial(ctx context.Context) (*websocket.Conn, error) {
	token := a.api.Token()
	if token == "" {
		return nil, ErrCredentialExpired
	}

	u := a.wsURL + "?access_token=" + url.QueryEscape(token)

	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	sock, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized {
				return nil, ErrCredentialExpired
			}
		}
		return nil, fmt.Errorf("sync.Agent failed to connect to %s: %w", a.wsURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	return sock, nil
}

// readLoop consumes notification frames until the connection drops, then
// hands control back to the reconnection loop.
func (a *Agent) readLoop(sock *websocket.Conn) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			a.stateMu.Lock()
			closing := a.state == StateClosing || a.state == StateClosed
			a.stateMu.Unlock()
			if closing {
				return
			}

			a.logger.Warn("sync.Agent connection lost", "error", err)
			if stateErr := a.transitionTo(StateDisconnected); stateErr != nil {
				a.logger.Error("BUG: sync.Agent failed to transition to disconnected state", "error", stateErr)
			}

			select {
			case a.reconnectCh <- 1:
			default:
			}
			return
		}

		var notification models.ChangeNotification
		if err := json.Unmarshal(data, &notification); err != nil {
			a.logger.Warn("sync.Agent received malformed notification, re-fetching anyway", "error", err)
		} else {
			a.logger.Debug("sync.Agent received change notification",
				"event", notification.Event,
				"action", notification.Action,
			)
		}

		// The notification payload is a hint only. Re-fetching the full
		// list makes reconciliation idempotent regardless of delivery
		// order or duplicated frames.
		if err := a.refresh(context.Background()); err != nil {
			a.logger.Warn("sync.Agent re-fetch failed, keeping previous view", "error", err)
		}
	}
}

// refresh re-fetches the full task list and atomically replaces the local
// snapshot. On failure the previous snapshot is kept.
func (a *Agent) refresh(ctx context.Context) error {
	tasks, err := a.api.ListTasks(ctx)
	if err != nil {
		return err
	}

	a.tasksMu.Lock()
	a.tasks = tasks
	a.tasksMu.Unlock()

	if a.onChange != nil {
		a.onChange(a.Tasks())
	}

	return nil
}

func (a *Agent) reconnectionLoop() {
	defer func() {
		close(a.reconnLoopCloseCh)
	}()

	for {
		select {
		case <-a.connCloseCh:
			return
		case <-a.reconnectCh:
		}

		if !a.reconnectWithBackoff() {
			return
		}
	}
}

// reconnectWithBackoff retries Connect per the backoff policy. It returns
// false when the loop should stop permanently: the agent was closed, the
// policy gave up, or the server rejected the credential.
func (a *Agent) reconnectWithBackoff() bool {
	for attempt := 0; ; attempt++ {
		a.logger.Info("sync.Agent is attempting to reconnect", "attempt", attempt)

		err := a.Connect(context.Background())
		if err == nil {
			return true
		}

		if errors.Is(err, ErrCredentialExpired) {
			a.logger.Error("sync.Agent credential rejected, stopping reconnection")
			a.stateMu.Lock()
			a.expired = true
			a.stateMu.Unlock()
			return false
		}

		a.logger.Warn("sync.Agent reconnect attempt failed", "attempt", attempt, "error", err)

		delay, retry := a.Backoff.Delay(attempt)
		if !retry {
			a.logger.Error("sync.Agent backoff exhausted, stopping reconnection")
			return false
		}

		select {
		case <-a.connCloseCh:
			return false
		case <-time.After(delay):
		}
	}
}

// Close stops the reconnection loop and closes the websocket connection.
// Once it returns, the reconnection loop is guaranteed to have stopped.
func (a *Agent) Close(ctx context.Context) error {
	if err := a.transitionTo(StateClosing); err != nil {
		return fmt.Errorf("sync.Agent is already closing or closed: %w", err)
	}

	defer func() {
		if err := a.transitionTo(StateClosed); err != nil {
			a.logger.Error("BUG: sync.Agent failed to transition to closed state", "error", err)
		}
	}()

	if a.connCloseCh != nil {
		close(a.connCloseCh)
		<-a.reconnLoopCloseCh
	}

	a.stateMu.Lock()
	sock := a.sock
	a.sock = nil
	a.stateMu.Unlock()

	if sock != nil {
		deadline := time.Now().Add(time.Second)
		if d, ok := ctx.Deadline(); ok {
			deadline = d
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := sock.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			a.logger.Debug("sync.Agent failed to send close frame", "error", err)
		}
		return sock.Close()
	}

	return nil
}
