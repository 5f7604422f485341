// Package onebot connects the relay to a OneBot v11 implementation over a
// forward WebSocket.
package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Vovarama1992/openai-chat-relay/internal/relay"
)

var ErrNotConnected = errors.New("onebot: not connected")

// Handler receives every message event.
type Handler interface {
	Handle(ctx context.Context, in relay.Inbound) bool
}

type actionResult struct {
	resp frame
	err  error
}

type Client struct {
	url     string
	token   string
	handler Handler
	dialer  *websocket.Dialer
	logger  *slog.Logger

	actionTimeout time.Duration
	minBackoff    time.Duration
	maxBackoff    time.Duration

	writeMu sync.Mutex
	mu      sync.Mutex
	conn    *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan actionResult

	handlers sync.WaitGroup
}

func NewClient(url, token string, handler Handler) *Client {
	return &Client{
		url:           url,
		token:         token,
		handler:       handler,
		dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:        slog.Default().With(slog.String("component", "onebot")),
		actionTimeout: 30 * time.Second,
		minBackoff:    time.Second,
		maxBackoff:    30 * time.Second,
		pending:       make(map[string]chan actionResult),
	}
}

// Run keeps a connection open until ctx ends, reconnecting with capped
// exponential backoff. In-flight handlers are waited for before returning.
func (c *Client) Run(ctx context.Context) error {
	defer c.handlers.Wait()

	backoff := c.minBackoff
	for {
		conn, err := c.connect(ctx)
		if err == nil {
			backoff = c.minBackoff
			err = c.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.WarnContext(ctx, "connection lost, reconnecting",
			slog.Any("err", err),
			slog.Duration("backoff", backoff),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "connected", slog.String("url", c.url))
	return conn, nil
}

// serve reads frames until the connection fails or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
		c.failPending(ErrNotConnected)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.DebugContext(ctx, "skipping malformed frame", slog.Any("err", err))
			continue
		}

		switch {
		case f.isResponse():
			c.resolve(f)
		case f.isMessage():
			if f.UserID == f.SelfID {
				continue
			}
			in := &inbound{client: c, event: f}
			c.handlers.Add(1)
			go func() {
				defer c.handlers.Done()
				c.handle(ctx, in)
			}()
		}
	}
}

func (c *Client) handle(ctx context.Context, in *inbound) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "panic in message handler", slog.Any("panic", r))
		}
	}()

	if c.handler.Handle(ctx, in) {
		c.logger.DebugContext(ctx, "message handled",
			slog.String("sender", in.SenderID()),
			slog.String("group", in.GroupID()),
		)
	}
}

// call sends an action and waits for the response with the same echo.
func (c *Client) call(ctx context.Context, name string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	echo := uuid.NewString()
	ch := make(chan actionResult, 1)
	c.pendingMu.Lock()
	c.pending[echo] = ch
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, echo)
		c.pendingMu.Unlock()
	}

	data, err := json.Marshal(action{Action: name, Params: params, Echo: echo})
	if err != nil {
		cleanup()
		return nil, err
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	timer := time.NewTimer(c.actionTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%s: %w", name, res.err)
		}
		if res.resp.Status == "failed" {
			reason := res.resp.Wording
			if reason == "" {
				reason = res.resp.Msg
			}
			return nil, fmt.Errorf("%s failed: retcode %d: %s", name, res.resp.RetCode, reason)
		}
		return res.resp.Data, nil
	case <-timer.C:
		cleanup()
		return nil, fmt.Errorf("timeout waiting for %s response", name)
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	}
}

func (c *Client) resolve(f frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.Echo]
	if ok {
		delete(c.pending, f.Echo)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- actionResult{resp: f}
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for echo, ch := range c.pending {
		ch <- actionResult{err: err}
		delete(c.pending, echo)
	}
}

func (c *Client) sendMessage(ctx context.Context, groupID, userID string, message []segment) error {
	if groupID != "" {
		_, err := c.call(ctx, "send_group_msg", map[string]any{
			"group_id": numericID(groupID),
			"message":  message,
		})
		return err
	}
	_, err := c.call(ctx, "send_private_msg", map[string]any{
		"user_id": numericID(userID),
		"message": message,
	})
	return err
}

func (c *Client) sendForward(ctx context.Context, groupID, userID string, selfID int64, title string, parts []string) error {
	uin := fmt.Sprint(selfID)
	nodes := make([]forwardNode, 0, len(parts)+1)
	for _, text := range append([]string{title}, parts...) {
		nodes = append(nodes, forwardNode{
			Type: "node",
			Data: forwardNodeData{Name: title, UIN: uin, Content: []segment{textSegment(text)}},
		})
	}

	if groupID != "" {
		_, err := c.call(ctx, "send_group_forward_msg", map[string]any{
			"group_id": numericID(groupID),
			"messages": nodes,
		})
		return err
	}
	_, err := c.call(ctx, "send_private_forward_msg", map[string]any{
		"user_id":  numericID(userID),
		"messages": nodes,
	})
	return err
}
