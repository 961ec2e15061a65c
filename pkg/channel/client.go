package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/watcher"
)

// Options configure a client connection.
type Options struct {
	// Addr is the manager address, normally 127.0.0.1:<watcher_rpc_port>.
	Addr string

	// PID identifies this process in advisories. Default: os.Getpid().
	PID int

	// DialTimeout bounds the connection attempt. Default: 2s.
	DialTimeout time.Duration

	// Spawn lets Connect start a manager in this process when none runs.
	Spawn bool

	// Watcher configures the watcher of a spawned manager.
	Watcher watcher.Config
}

// Client is a connection to the watch manager.
type Client struct {
	conn   net.Conn
	addr   string
	pid    int
	logger logger.Logger

	encMu sync.Mutex
	enc   *json.Encoder

	nextID  atomic.Uint64
	pendMu  sync.Mutex
	pending map[uint64]chan Message

	changes    chan Change
	advisories chan Advisory

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Set when Connect started a manager for this client.
	stopManager func()
}

// Dial connects to a running manager.
//
// Returns *ChannelError if the manager cannot be reached.
func Dial(ctx context.Context, opts Options, log logger.Logger) (*Client, error) {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 2 * time.Second
	}
	if opts.PID == 0 {
		opts.PID = os.Getpid()
	}

	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, &ChannelError{Op: "dial", Addr: opts.Addr, Err: err}
	}

	c := &Client{
		conn:       conn,
		addr:       opts.Addr,
		pid:        opts.PID,
		logger:     log.With("component", "channel"),
		enc:        json.NewEncoder(conn),
		pending:    make(map[uint64]chan Message),
		changes:    make(chan Change, 256),
		advisories: make(chan Advisory, 16),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	go c.readLoop()

	c.logger.Debug("connected to watch manager", "addr", opts.Addr)
	return c, nil
}

// PID returns the process id this client reports.
func (c *Client) PID() int {
	return c.pid
}

// Addr returns the manager address.
func (c *Client) Addr() string {
	return c.addr
}

// Watch registers paths with the manager.
func (c *Client) Watch(ctx context.Context, paths []string) error {
	_, err := c.request(ctx, Message{Type: TypeWatch, Paths: paths})
	return err
}

// Unwatch unregisters paths. The manager tolerates unknown paths.
func (c *Client) Unwatch(ctx context.Context, paths []string) error {
	_, err := c.request(ctx, Message{Type: TypeUnwatch, Paths: paths})
	return err
}

// Status asks the manager for its pid and registered paths.
func (c *Client) Status(ctx context.Context) (Status, error) {
	ack, err := c.request(ctx, Message{Type: TypeStatus})
	if err != nil {
		return Status{}, err
	}
	return Status{Addr: c.addr, PID: ack.PID, Registered: ack.Paths}, nil
}

// Changes returns the change events. The channel is closed when the
// connection ends.
func (c *Client) Changes() <-chan Change {
	return c.changes
}

// Advisories returns peer watch/unwatch advisories. The channel is closed
// when the connection ends.
func (c *Client) Advisories() <-chan Advisory {
	return c.advisories
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection, and stops the manager if Connect started it.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		err = c.conn.Close()
		<-c.done
		if c.stopManager != nil {
			c.stopManager()
		}
	})
	return err
}

func (c *Client) request(ctx context.Context, msg Message) (Message, error) {
	msg.ID = c.nextID.Add(1)
	msg.PID = c.pid

	reply := make(chan Message, 1)
	c.pendMu.Lock()
	c.pending[msg.ID] = reply
	c.pendMu.Unlock()

	defer func() {
		c.pendMu.Lock()
		delete(c.pending, msg.ID)
		c.pendMu.Unlock()
	}()

	if err := c.send(msg); err != nil {
		return Message{}, &ChannelError{Op: msg.Type, Addr: c.addr, Err: err}
	}

	select {
	case ack := <-reply:
		if ack.Error != "" {
			return ack, &ChannelError{Op: msg.Type, Addr: c.addr, Err: fmt.Errorf("%w: %s", ErrRejected, ack.Error)}
		}
		return ack, nil
	case <-c.done:
		return Message{}, &ChannelError{Op: msg.Type, Addr: c.addr, Err: ErrClosed}
	case <-ctx.Done():
		return Message{}, &ChannelError{Op: msg.Type, Addr: c.addr, Err: ctx.Err()}
	}
}

func (c *Client) send(msg Message) error {
	c.encMu.Lock()
	defer c.encMu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.enc.Encode(msg)
}

func (c *Client) readLoop() {
	defer func() {
		close(c.done)
		close(c.changes)
		close(c.advisories)
	}()

	dec := json.NewDecoder(c.conn)
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("watch manager connection ended", "error", err)
			}
			return
		}

		switch msg.Type {
		case TypeAck:
			c.pendMu.Lock()
			reply, ok := c.pending[msg.ID]
			c.pendMu.Unlock()
			if ok {
				reply <- msg
			}

		case TypeChange:
			select {
			case c.changes <- Change{Kind: msg.Kind, Path: msg.Path}:
			case <-c.quit:
				return
			}

		case TypeAdvisory:
			select {
			case c.advisories <- Advisory{Task: msg.Task, PID: msg.PID}:
			default:
				c.logger.Debug("advisory dropped", "task", msg.Task, "pid", msg.PID)
			}

		default:
			c.logger.Debug("unknown message from manager", "type", msg.Type)
		}
	}
}
