package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"tilawah/internal/engine"
)

// ErrClosed is returned once the server has hung up.
var ErrClosed = errors.New("control socket closed")

// Client speaks the control protocol. Replies are matched to requests in
// order; EVENT lines are delivered on Events.
type Client struct {
	conn    net.Conn
	replies chan string
	events  chan engine.Snapshot
	mu      sync.Mutex
	quit    chan struct{}
	once    sync.Once
	done    chan struct{}
}

func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	c := &Client{
		conn:    nc,
		replies: make(chan string, 1),
		events:  make(chan engine.Snapshot, 16),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)
	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 64*1024), 8<<20)
	for sc.Scan() {
		line := sc.Text()
		if payload, ok := strings.CutPrefix(line, "EVENT "); ok {
			var snap engine.Snapshot
			if json.Unmarshal([]byte(payload), &snap) != nil {
				continue
			}
			select {
			case c.events <- snap:
			default:
				// keep the newest
				select {
				case <-c.events:
				default:
				}
				c.events <- snap
			}
			continue
		}
		select {
		case c.replies <- line:
		case <-c.quit:
			return
		}
	}
}

// Events delivers the snapshots pushed to the owner. It is closed when the
// connection ends.
func (c *Client) Events() <-chan engine.Snapshot { return c.events }

// Send writes one request line and returns the reply line. Replies of the
// form "ERR CODE" are returned as *RemoteError.
func (c *Client) Send(ctx context.Context, line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write([]byte(strings.TrimSpace(line) + "\n")); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	select {
	case reply := <-c.replies:
		if code, ok := strings.CutPrefix(reply, "ERR "); ok {
			return reply, &RemoteError{Code: code}
		}
		return reply, nil
	case <-c.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Status fetches and decodes the current snapshot.
func (c *Client) Status(ctx context.Context) (engine.Snapshot, error) {
	var snap engine.Snapshot
	reply, err := c.Send(ctx, "STATUS")
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal([]byte(reply), &snap); err != nil {
		return snap, fmt.Errorf("decode status: %w", err)
	}
	return snap, nil
}

func (c *Client) Close() error {
	c.once.Do(func() { close(c.quit) })
	err := c.conn.Close()
	<-c.done
	return err
}

// RemoteError is an ERR reply.
type RemoteError struct {
	Code string
}

func (e *RemoteError) Error() string { return "server: " + e.Code }
