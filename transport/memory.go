// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Compile-time interface checks.
var (
	_ Dialer = (*MemoryBroker)(nil)
	_ Conn   = (*memoryConn)(nil)
)

// BrokerUser is the identity the memory broker attaches to an
// authenticated connection. Echoed messages carry its ID and name as
// sender fields.
type BrokerUser struct {
	ID   int64
	Name string
}

// MemoryBroker is an in-process broker for tests. It speaks the full
// frame protocol — CONNECT authentication against registered tokens,
// subscription bookkeeping, SEND fan-out with server-assigned message
// IDs and timestamps (including the echo back to the sender) — without
// any network. Every inbound frame and connection close is recorded in
// an ordered log so tests can assert call ordering.
type MemoryBroker struct {
	mu sync.Mutex

	users    map[string]BrokerUser // bearer token → user
	subs     map[string]*brokerSubscription
	conns    map[*memoryConn]struct{}
	frameLog []string
	nextID   int64
	now      func() time.Time
}

// brokerSubscription is one active subscription: which connection to
// deliver to, and the topic it covers.
type brokerSubscription struct {
	conn        *memoryConn
	destination string
}

// NewMemoryBroker creates an empty broker with no authorized tokens.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		users: make(map[string]BrokerUser),
		subs:  make(map[string]*brokerSubscription),
		conns: make(map[*memoryConn]struct{}),
		now:   time.Now,
	}
}

// Authorize registers a bearer token and the user it authenticates as.
func (b *MemoryBroker) Authorize(token string, user BrokerUser) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[token] = user
}

// DialContext returns a connected, unauthenticated client connection.
// The broker URL is ignored — there is no network.
func (b *MemoryBroker) DialContext(ctx context.Context, brokerURL string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn := &memoryConn{
		broker:  b,
		inbound: make(chan *Frame, 64),
		done:    make(chan struct{}),
	}
	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.mu.Unlock()
	return conn, nil
}

// FrameLog returns a snapshot of the ordered event log. Entries are the
// frame command plus destination where one applies, and "DISCONNECT"
// when a connection closes.
func (b *MemoryBroker) FrameLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	log := make([]string, len(b.frameLog))
	copy(log, b.frameLog)
	return log
}

// SubscriptionCount returns the number of active subscriptions.
func (b *MemoryBroker) SubscriptionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// SubscriptionIDs returns the IDs of all active subscriptions.
func (b *MemoryBroker) SubscriptionIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	return ids
}

// Inject delivers a message from a user who is not connected through
// this broker instance (a "genuinely new incoming message" as opposed to
// an echo of the caller's own send). Returns the server-assigned
// message ID.
func (b *MemoryBroker) Inject(roomID int64, sender BrokerUser, text string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.broadcastLocked(roomID, sender, text)
}

// DropConnections severs every live connection without any protocol
// shutdown, simulating a transport failure. Subscriptions held by the
// dropped connections are discarded — a real broker would reap them when
// the socket dies.
func (b *MemoryBroker) DropConnections() {
	b.mu.Lock()
	conns := make([]*memoryConn, 0, len(b.conns))
	for conn := range b.conns {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// handleFrame processes one client frame. Called synchronously from
// memoryConn.WriteFrame, so test interleavings are deterministic.
func (b *MemoryBroker) handleFrame(conn *memoryConn, frame *Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := frame.Command
	if frame.Destination != "" {
		entry += " " + frame.Destination
	}
	b.frameLog = append(b.frameLog, entry)

	switch frame.Command {
	case CommandConnect:
		token := strings.TrimPrefix(frame.Headers[HeaderAuthorization], "Bearer ")
		user, ok := b.users[token]
		if !ok {
			conn.deliver(&Frame{
				Command: CommandError,
				Headers: map[string]string{HeaderMessage: "authentication failed"},
			})
			return nil
		}
		conn.user = user
		conn.authenticated = true
		conn.deliver(&Frame{Command: CommandConnected})

	case CommandSubscribe:
		if !conn.authenticated {
			conn.deliver(&Frame{
				Command: CommandError,
				Headers: map[string]string{HeaderMessage: "not authenticated"},
			})
			return nil
		}
		b.subs[frame.Subscription] = &brokerSubscription{
			conn:        conn,
			destination: frame.Destination,
		}

	case CommandUnsubscribe:
		// Unsubscribing an unknown ID is a no-op, matching broker
		// behavior for subscribe/unsubscribe races.
		delete(b.subs, frame.Subscription)

	case CommandSend:
		if !conn.authenticated {
			return fmt.Errorf("transport: send before connect")
		}
		var payload struct {
			RoomID  int64  `json:"roomId"`
			Kind    string `json:"kind"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(frame.Body, &payload); err != nil {
			return fmt.Errorf("transport: malformed send body: %w", err)
		}
		b.broadcastLocked(payload.RoomID, conn.user, payload.Message)

	default:
		return fmt.Errorf("transport: unknown command %q", frame.Command)
	}
	return nil
}

// broadcastLocked assigns a server message ID and timestamp, then
// delivers a MESSAGE frame to every subscription on the room's topic —
// including the sender's own, which is the echo the optimistic
// reconciler consumes. Caller holds b.mu.
func (b *MemoryBroker) broadcastLocked(roomID int64, sender BrokerUser, text string) string {
	b.nextID++
	messageID := fmt.Sprintf("%d", b.nextID)

	body, _ := json.Marshal(map[string]any{
		"messageId":  messageID,
		"roomId":     roomID,
		"kind":       "TALK",
		"message":    text,
		"senderId":   sender.ID,
		"senderName": sender.Name,
		"createdAt":  b.now().UTC().Format(time.RFC3339Nano),
	})

	topic := RoomTopic(roomID)
	for id, sub := range b.subs {
		if sub.destination != topic {
			continue
		}
		sub.conn.deliver(&Frame{
			Command:      CommandMessage,
			Destination:  topic,
			Subscription: id,
			Body:         body,
		})
	}
	return messageID
}

// removeConn drops a closed connection and its subscriptions.
func (b *MemoryBroker) removeConn(conn *memoryConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[conn]; !ok {
		return
	}
	delete(b.conns, conn)
	for id, sub := range b.subs {
		if sub.conn == conn {
			delete(b.subs, id)
		}
	}
	b.frameLog = append(b.frameLog, "DISCONNECT")
}

// memoryConn is the client half of an in-process broker connection.
type memoryConn struct {
	broker        *MemoryBroker
	user          BrokerUser
	authenticated bool

	inbound   chan *Frame
	closeOnce sync.Once
	done      chan struct{}
}

func (c *memoryConn) ReadFrame() (*Frame, error) {
	select {
	case frame := <-c.inbound:
		return frame, nil
	case <-c.done:
		// Drain frames delivered before the close won the race.
		select {
		case frame := <-c.inbound:
			return frame, nil
		default:
		}
		return nil, fmt.Errorf("transport: connection closed")
	}
}

func (c *memoryConn) WriteFrame(frame *Frame) error {
	select {
	case <-c.done:
		return fmt.Errorf("transport: write on closed connection")
	default:
	}
	return c.broker.handleFrame(c, frame)
}

func (c *memoryConn) Close() error {
	c.closeOnce.Do(func() {
		c.broker.removeConn(c)
		close(c.done)
	})
	return nil
}

// deliver queues a frame for the client. Frames to a connection that
// closed or stopped reading are discarded — the broker does not block.
func (c *memoryConn) deliver(frame *Frame) {
	select {
	case c.inbound <- frame:
	case <-c.done:
	default:
	}
}
