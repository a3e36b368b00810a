// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roomtalk/roomtalk/lib/netutil"
	"github.com/roomtalk/roomtalk/transport"
)

// Status is the connection state surfaced to the UI layer. Transport
// failures are reported only through this value — inbound-frame handling
// never propagates errors to callers.
type Status string

const (
	// StatusIdle is a session that has not started connecting.
	StatusIdle Status = "idle"
	// StatusConnecting covers the dial and CONNECT handshake.
	StatusConnecting Status = "connecting"
	// StatusOpen means authenticated and subscribed; sends are accepted.
	StatusOpen Status = "open"
	// StatusClosed is a graceful teardown. Terminal for the session.
	StatusClosed Status = "closed"
	// StatusError is an abnormal transport or auth failure. Terminal for
	// the session instance, but the manager keeps retrying the transport
	// while the identity remains current.
	StatusError Status = "error"
)

// defaultRetryInterval is the fixed cadence for transport reconnect
// attempts after a failure.
const defaultRetryInterval = 3 * time.Second

// SessionHooks are the callbacks a session drives. OnMessage receives
// every decoded wire message delivered on the active subscription.
// OnStatus observes state transitions; it may be nil.
//
// Hooks are invoked from the session's reader and retry goroutines, never
// with internal locks held, so implementations may call back into the
// session (Publish, Status) freely.
type SessionHooks struct {
	OnMessage func(*WireMessage)
	OnStatus  func(Status)
}

// ManagerConfig configures a connection Manager.
type ManagerConfig struct {
	// BrokerURL is the broker endpoint handed to the dialer.
	BrokerURL string
	// Dialer establishes broker connections. Required.
	Dialer transport.Dialer
	// RetryInterval overrides the fixed 3-second reconnect cadence.
	RetryInterval time.Duration
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// Manager owns the broker session lifecycle: connect, authenticate,
// subscribe, auto-reconnect, disconnect. Sessions are keyed by
// [RoomIdentity]; at most one session is live at a time, and a connect
// for a new identity fully tears down the previous session (unsubscribe,
// then deactivate) before dialing.
type Manager struct {
	brokerURL     string
	dialer        transport.Dialer
	retryInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	current *Session
}

// NewManager creates a Manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.BrokerURL == "" {
		return nil, fmt.Errorf("chat: BrokerURL is required")
	}
	if config.Dialer == nil {
		return nil, fmt.Errorf("chat: Dialer is required")
	}
	retryInterval := config.RetryInterval
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		brokerURL:     config.BrokerURL,
		dialer:        config.Dialer,
		retryInterval: retryInterval,
		logger:        logger,
	}, nil
}

// Session is one live broker connection bound to a RoomIdentity. Owned
// exclusively by the Manager; other components interact with it only
// through its narrow surface (Publish, Status).
type Session struct {
	manager  *Manager
	identity RoomIdentity
	key      string
	hooks    SessionHooks
	registry *Registry

	mu     sync.Mutex
	status Status
	conn   transport.Conn
	closed bool
	done   chan struct{}
}

// Connect returns a session for the identity. If the current session has
// the same identity and is open (or still connecting), Connect is a
// no-op returning it — rapid re-invocation never produces duplicate
// sockets. A different identity tears the previous session down first.
//
// Dial or auth failures do not fail Connect: the session is returned in
// StatusError and the manager retries on its fixed interval while the
// identity remains current.
func (m *Manager) Connect(ctx context.Context, identity RoomIdentity, hooks SessionHooks) (*Session, error) {
	if identity.IsZero() {
		return nil, fmt.Errorf("chat: Connect requires a non-zero identity")
	}
	if hooks.OnMessage == nil {
		return nil, fmt.Errorf("chat: Connect requires an OnMessage hook")
	}

	m.mu.Lock()
	if m.current != nil && m.current.key == identity.Key() {
		switch m.current.Status() {
		case StatusOpen, StatusConnecting:
			existing := m.current
			m.mu.Unlock()
			return existing, nil
		}
	}
	// Never leave the prior session dangling: unsubscribe, then
	// deactivate, before the new session starts connecting.
	if m.current != nil {
		m.teardown(m.current)
	}

	session := &Session{
		manager:  m,
		identity: identity,
		key:      identity.Key(),
		hooks:    hooks,
		registry: NewRegistry(m.logger),
		status:   StatusIdle,
		done:     make(chan struct{}),
	}
	m.current = session
	m.mu.Unlock()

	if err := m.establish(ctx, session); err != nil {
		m.logger.Warn("broker connect failed, will retry",
			"room_id", identity.RoomID,
			"retry_interval", m.retryInterval,
			"error", err,
		)
		session.setStatus(StatusError)
		m.scheduleRetry(session)
	}
	return session, nil
}

// Disconnect tears the session down: unsubscribe, then deactivate the
// transport. Idempotent — a nil, already-closed, or superseded session
// is a no-op.
func (m *Manager) Disconnect(session *Session) {
	if session == nil {
		return
	}
	m.mu.Lock()
	if m.current == session {
		m.current = nil
	}
	m.mu.Unlock()
	m.teardown(session)
}

// establish dials, authenticates, and subscribes. On success the session
// is open and a reader goroutine owns the connection.
func (m *Manager) establish(ctx context.Context, session *Session) error {
	session.setStatus(StatusConnecting)

	conn, err := m.dialer.DialContext(ctx, m.brokerURL)
	if err != nil {
		return fmt.Errorf("chat: dial broker: %w", err)
	}

	err = conn.WriteFrame(&transport.Frame{
		Command: transport.CommandConnect,
		Headers: map[string]string{
			transport.HeaderAuthorization: "Bearer " + session.identity.AuthToken,
		},
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("chat: send connect frame: %w", err)
	}

	reply, err := conn.ReadFrame()
	if err != nil {
		conn.Close()
		return fmt.Errorf("chat: read connect reply: %w", err)
	}
	switch reply.Command {
	case transport.CommandConnected:
	case transport.CommandError:
		conn.Close()
		return fmt.Errorf("chat: broker rejected connect: %s", reply.Headers[transport.HeaderMessage])
	default:
		conn.Close()
		return fmt.Errorf("chat: unexpected connect reply %q", reply.Command)
	}

	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		conn.Close()
		return fmt.Errorf("chat: session closed during connect")
	}
	session.conn = conn

	// Reconnects must not double deliveries: drop any subscription left
	// over from the previous connection before subscribing fresh.
	session.registry.Unsubscribe(conn)
	sub, err := session.registry.Subscribe(conn, transport.RoomTopic(session.identity.RoomID))
	if err != nil {
		session.conn = nil
		session.mu.Unlock()
		conn.Close()
		return err
	}
	session.status = StatusOpen
	session.mu.Unlock()

	if session.hooks.OnStatus != nil {
		session.hooks.OnStatus(StatusOpen)
	}
	m.logger.Info("broker session open",
		"room_id", session.identity.RoomID,
		"topic", sub.TopicPath,
		"subscription_id", sub.ID,
	)

	go session.readLoop(conn)
	return nil
}

// scheduleRetry re-establishes the transport on the fixed interval until
// it succeeds, the session is torn down, or the identity stops being
// current.
func (m *Manager) scheduleRetry(session *Session) {
	go func() {
		ticker := time.NewTicker(m.retryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-session.done:
				return
			case <-ticker.C:
				if !m.isCurrent(session) {
					return
				}
				if err := m.establish(context.Background(), session); err != nil {
					session.setStatus(StatusError)
					m.logger.Warn("broker reconnect failed",
						"room_id", session.identity.RoomID,
						"error", err,
					)
					continue
				}
				return
			}
		}
	}()
}

func (m *Manager) isCurrent(session *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == session
}

// teardown closes a session: unsubscribe first (an unsubscribe after the
// transport is gone is a useless no-op at the broker), then deactivate
// the connection. Safe to call repeatedly.
func (m *Manager) teardown(session *Session) {
	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		return
	}
	session.closed = true
	conn := session.conn
	session.conn = nil
	session.registry.Unsubscribe(conn)
	session.status = StatusClosed
	close(session.done)
	session.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if session.hooks.OnStatus != nil {
		session.hooks.OnStatus(StatusClosed)
	}
	m.logger.Info("broker session closed", "room_id", session.identity.RoomID)
}

// Identity returns the identity the session was opened with.
func (s *Session) Identity() RoomIdentity {
	return s.identity
}

// Status returns the current connection state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Publish sends an outbound frame to the fixed publish topic. Fire and
// forget: there is no acknowledgement channel, the broker's echo over
// the subscription is the only confirmation.
func (s *Session) Publish(payload SendPayload) error {
	s.mu.Lock()
	conn := s.conn
	status := s.status
	s.mu.Unlock()

	if status != StatusOpen || conn == nil {
		return fmt.Errorf("chat: publish on %s session", status)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("chat: encode send payload: %w", err)
	}
	return conn.WriteFrame(&transport.Frame{
		Command:     transport.CommandSend,
		Destination: transport.SendDestination,
		Body:        body,
	})
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	changed := s.status != status
	s.status = status
	s.mu.Unlock()

	if changed && s.hooks.OnStatus != nil {
		s.hooks.OnStatus(status)
	}
}

// readLoop dispatches inbound frames until the connection fails or the
// session closes. Malformed frames and frames for stale subscriptions
// are dropped, never fatal.
func (s *Session) readLoop(conn transport.Conn) {
	logger := s.manager.logger
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			if closed {
				return
			}
			if netutil.IsExpectedCloseError(err) {
				logger.Info("broker connection closed, reconnecting",
					"room_id", s.identity.RoomID,
				)
			} else {
				logger.Warn("broker connection lost, reconnecting",
					"room_id", s.identity.RoomID,
					"error", err,
				)
			}
			conn.Close()
			s.setStatus(StatusError)
			s.manager.scheduleRetry(s)
			return
		}

		switch frame.Command {
		case transport.CommandMessage:
			s.mu.Lock()
			active := s.registry.Active()
			s.mu.Unlock()
			if active == nil || frame.Subscription != active.ID {
				logger.Debug("dropping frame for stale subscription",
					"subscription_id", frame.Subscription,
				)
				continue
			}
			msg, err := DecodeWireMessage(frame.Body)
			if err != nil {
				logger.Debug("dropping malformed frame", "error", err)
				continue
			}
			s.hooks.OnMessage(msg)

		case transport.CommandError:
			logger.Warn("broker error frame",
				"room_id", s.identity.RoomID,
				"message", frame.Headers[transport.HeaderMessage],
			)

		default:
			logger.Debug("ignoring frame", "command", frame.Command)
		}
	}
}
