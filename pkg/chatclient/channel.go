package chatclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"chatsync-be/pkg/apperror"
	"chatsync-be/pkg/realtime"

	"github.com/fasthttp/websocket"
)

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

const (
	writeWait = 10 * time.Second
	// a little over the server's ping period
	pongWait = 70 * time.Second
)

type ChannelOptions struct {
	// URL of the websocket endpoint, e.g. ws://localhost:3000/api/ws
	URL   string
	Token string

	ReconnectMin time.Duration
	ReconnectMax time.Duration

	OnReply    func(realtime.ReplyPayload)
	OnFailed   func(realtime.FailedPayload)
	OnActivity func(realtime.ActivityPayload)
}

// Channel is the client end of the realtime connection. One per session,
// shared by all chats. It reconnects on its own until Close; nothing sent
// while it is not open is queued.
type Channel struct {
	opts   ChannelOptions
	dialer *websocket.Dialer

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	lastErr error
	subs    map[chan State]struct{}

	writeMu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

func NewChannel(opts ChannelOptions) *Channel {
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = 500 * time.Millisecond
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 10 * time.Second
	}
	return &Channel{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		state:  StateClosed,
		subs:   make(map[chan State]struct{}),
	}
}

// Open starts the connect loop. It returns once the first attempt has either
// opened the connection or failed; later attempts continue in the background.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return errors.New("channel already opened")
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	first := make(chan error, 1)
	go c.run(first)

	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops reconnecting and closes the connection.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.stop == nil {
		c.mu.Unlock()
		return nil
	}
	select {
	case <-c.stop:
		c.mu.Unlock()
		<-c.done
		return nil
	default:
	}
	close(c.stop)
	conn := c.conn
	c.mu.Unlock()

	c.setState(StateClosing)
	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		conn.Close()
	}
	<-c.done
	c.setState(StateClosed)
	return nil
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error behind the most recent disconnect, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Subscribe returns a stream of state transitions. Slow readers miss
// intermediate states; State() is always current.
func (c *Channel) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 16)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}

// Send emits a `send` event. It fails fast with ChannelUnavailable unless the
// channel is open.
func (c *Channel) Send(payload realtime.SendPayload) error {
	c.mu.Lock()
	state, conn := c.state, c.conn
	c.mu.Unlock()
	if state != StateOpen || conn == nil {
		return apperror.ChannelUnavailable(state.String())
	}

	frame, err := realtime.Encode(realtime.EventSend, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return apperror.Wrap(apperror.KindChannelUnavailable, "realtime channel write failed", err)
	}
	return nil
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == s {
		return
	}
	c.state = s
	for ch := range c.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (c *Channel) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Channel) run(first chan<- error) {
	defer close(c.done)

	backoff := c.opts.ReconnectMin
	reported := false
	report := func(err error) {
		if !reported {
			reported = true
			first <- err
		}
	}

	for !c.stopped() {
		c.setState(StateConnecting)
		conn, err := c.dial()
		if err != nil {
			c.recordErr(err)
			report(err)
			if apperror.KindOf(err) == apperror.KindAuth {
				// a bad credential will not get better by retrying
				c.setState(StateClosed)
				return
			}
			if !c.wait(backoff) {
				return
			}
			backoff = min(backoff*2, c.opts.ReconnectMax)
			continue
		}

		c.mu.Lock()
		if c.stopped() {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.setState(StateOpen)
		report(nil)
		backoff = c.opts.ReconnectMin

		err = c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()

		if c.stopped() {
			return
		}
		c.recordErr(err)
		c.setState(StateClosed)
		if !c.wait(backoff) {
			return
		}
	}
}

func (c *Channel) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse channel url: %w", err)
	}
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.dialer.HandshakeTimeout)
	defer cancel()
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, apperror.Wrap(apperror.KindAuth, "realtime handshake rejected", err)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	return conn, nil
}

func (c *Channel) readLoop(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(raw)
	}
}

func (c *Channel) dispatch(raw []byte) {
	env, err := realtime.Decode(raw)
	if err != nil {
		return
	}

	switch env.Type {
	case realtime.EventReply:
		if p, err := realtime.DecodeData[realtime.ReplyPayload](env); err == nil && c.opts.OnReply != nil {
			c.opts.OnReply(p)
		}
	case realtime.EventFailed:
		if p, err := realtime.DecodeData[realtime.FailedPayload](env); err == nil && c.opts.OnFailed != nil {
			c.opts.OnFailed(p)
		}
	case realtime.EventActivity:
		if p, err := realtime.DecodeData[realtime.ActivityPayload](env); err == nil && c.opts.OnActivity != nil {
			c.opts.OnActivity(p)
		}
	}
}

func (c *Channel) recordErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// wait sleeps for d unless Close is called first.
func (c *Channel) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.stop:
		return false
	}
}
