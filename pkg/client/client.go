// Package client is a thin control-socket client: dial the supervisor's
// UNIX stream socket, send one framed Request, and collect the stream of
// Responses it produces until a terminal Ok or Failure status arrives. Both
// sozuctl and any client-facing sozu sub-commands are built on this.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/sozu-io/sozu/internal/channelcodec"
	"github.com/sozu-io/sozu/internal/wire"
)

// Config dials and frames the connection to the control socket.
type Config struct {
	// SocketPath is the UNIX socket the supervisor's command server listens on.
	SocketPath string
	// DialTimeout bounds the initial connection attempt.
	DialTimeout time.Duration
	// CodecConfig bounds frame sizes, matching the supervisor's own limits.
	CodecConfig channelcodec.Config
}

func (c Config) withDefaults() Config {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// Client holds one connection to the control socket. It is not safe for
// concurrent Do calls from multiple goroutines; callers that need
// concurrency should open one Client per goroutine.
type Client struct {
	cfg   Config
	codec *channelcodec.Codec
}

// Dial connects to the control socket at cfg.SocketPath.
func Dial(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	conn, err := net.DialTimeout("unix", cfg.SocketPath, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.SocketPath, err)
	}

	return &Client{
		cfg:   cfg,
		codec: channelcodec.New(conn, cfg.CodecConfig),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.codec.Close()
}

// Result is the outcome of a single request: every intermediate Processing
// response observed, followed by the terminal Ok or Failure response.
type Result struct {
	Processing []wire.Response
	Final      wire.Response
}

// Err returns a non-nil error if the terminal response was a Failure.
func (r Result) Err() error {
	if r.Final.Status == wire.ResponseFailure {
		return fmt.Errorf("client: request failed: %s", r.Final.Message)
	}
	return nil
}

// Do assigns req an ID and protocol version if unset, sends it, and reads
// framed Responses until the first Ok or Failure for that ID - matching
// the termination rule documented on wire.ResponseStatus.
func (c *Client) Do(ctx context.Context, req wire.Request) (Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Version == 0 {
		req.Version = wire.ProtocolVersion
	}

	if err := c.codec.Send(req); err != nil {
		return Result{}, fmt.Errorf("client: send request: %w", err)
	}

	var result Result
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		var resp wire.Response
		if err := c.codec.RecvInto(&resp); err != nil {
			if errors.Is(err, channelcodec.ErrPeerClosed) {
				return Result{}, fmt.Errorf("client: connection closed before a terminal response arrived")
			}
			return Result{}, fmt.Errorf("client: receive response: %w", err)
		}

		if resp.ID != req.ID {
			continue
		}

		switch resp.Status {
		case wire.ResponseProcessing:
			result.Processing = append(result.Processing, resp)
		case wire.ResponseOk, wire.ResponseFailure:
			result.Final = resp
			return result, nil
		default:
			return Result{}, fmt.Errorf("client: unknown response status %q", resp.Status)
		}
	}
}

// SubscribeEvents sends a RequestSubscribeEvents and invokes onEvent for
// every Event-bearing Response until ctx is cancelled or the connection
// closes. The supervisor holds this connection open indefinitely, so
// callers own their own cancellation.
func (c *Client) SubscribeEvents(ctx context.Context, onEvent func(wire.Event)) error {
	req := wire.Request{ID: uuid.NewString(), Version: wire.ProtocolVersion, Kind: wire.RequestSubscribeEvents}
	if err := c.codec.Send(req); err != nil {
		return fmt.Errorf("client: send subscribe: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var resp wire.Response
		if err := c.codec.RecvInto(&resp); err != nil {
			if errors.Is(err, channelcodec.ErrPeerClosed) {
				return nil
			}
			return fmt.Errorf("client: receive event: %w", err)
		}

		if resp.Content != nil && resp.Content.Kind == wire.ContentEvent && resp.Content.Event != nil {
			onEvent(*resp.Content.Event)
		}
	}
}
