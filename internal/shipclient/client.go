// Package shipclient is the ship side of the master↔ship secure channel
// (spec §4.1): it dials the master, performs the client role of the
// handshake, and exposes a single synchronous request/response Call,
// mirroring internal/master.Server's server-role handling of the very
// same channel.Session/masterproto.Envelope pair.
package shipclient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/channel"
	"github.com/shipcluster/server/internal/masterproto"
)

// Client is one ship's outbound connection to the master. All of a ship's
// blocks share a single Client; Call is safe for concurrent use since the
// underlying channel.Session only supports one in-flight request at a
// time (a reply must be read before the next request is sent).
type Client struct {
	sess *channel.Session
	log  *zap.Logger

	mu      sync.Mutex
	nextID  atomic.Uint32
}

// Dial connects to the master at addr, performs the client-role handshake
// using trust, presents shipID/psk to the master's VerifyPSK, and returns
// a ready Client. The caller is responsible for Close.
func Dial(addr string, trust channel.TrustPredicate, shipID uint32, psk string, log *zap.Logger) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial master %s: %w", addr, err)
	}

	secured, err := channel.ClientHandshake(conn, trust, shipID, psk)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("master handshake: %w", err)
	}

	return &Client{
		sess: channel.NewSession(conn, secured, 0),
		log:  log,
	}, nil
}

// Call sends action and blocks for the matching result. ctx cancellation
// is honored only up to the point the request has been written; once
// sent, Call waits for the master's reply since the channel has no way to
// abandon a single in-flight request without desynchronizing the stream.
func (c *Client) Call(ctx context.Context, action masterproto.Action) (masterproto.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	id := c.nextID.Add(1)
	if err := c.sess.Send(&masterproto.Envelope{ID: id, Action: action}); err != nil {
		return nil, fmt.Errorf("send action: %w", err)
	}

	var reply masterproto.Envelope
	if err := c.sess.Recv(&reply); err != nil {
		return nil, fmt.Errorf("recv result: %w", err)
	}
	return reply.Result, nil
}

func (c *Client) Close() error {
	return c.sess.Close()
}
