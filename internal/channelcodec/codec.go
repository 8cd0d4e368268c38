// Package channelcodec implements the framed, length-delimited message
// channel used on every control-plane link: supervisor<->worker,
// supervisor<->CLI, and supervisor<->successor supervisor during upgrade.
//
// Frames are a 4-byte big-endian length prefix followed by a JSON payload.
// The wire format is deliberately not the original's protobuf schema -
// see DESIGN.md and SPEC_FULL.md §9 for why - but the Codec interface is
// shaped so a protobuf implementation could be dropped in later without
// touching callers.
package channelcodec

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/sozu-io/sozu/pkg/bufpool"
)

// ErrPeerClosed is returned by Send when the underlying connection has
// already been closed.
var ErrPeerClosed = errors.New("channelcodec: peer closed")

// ErrBackpressure is returned by Send when the channel is configured
// non-blocking and its outbound buffer is full.
var ErrBackpressure = errors.New("channelcodec: send buffer full")

// ErrMalformed is returned by Recv when the frame length prefix or payload
// cannot be decoded.
var ErrMalformed = errors.New("channelcodec: malformed frame")

// ErrFrameTooLarge is returned when a received frame exceeds the configured
// maximum size; the caller must disconnect the peer.
var ErrFrameTooLarge = errors.New("channelcodec: frame too large")

const lengthPrefixSize = 4

// Config bounds frame sizes. MaxSize defaults to 2x Size when unset,
// matching the soft/hard cap relationship in SPEC_FULL.md §4.1.
type Config struct {
	// Size is the soft buffer size hint (command_buffer_size).
	Size int
	// MaxSize is the hard cap on a single frame (max_command_buffer_size).
	MaxSize int
	// NonBlocking makes Send return ErrBackpressure instead of blocking
	// when the outbound queue is full.
	NonBlocking bool
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = bufpool.DefaultSmallSize
	}
	if c.MaxSize <= 0 {
		c.MaxSize = c.Size * 2
	}
	return c
}

// Codec is a bidirectional framed channel over a stream connection. A single
// Codec must not be used for concurrent Send calls from multiple goroutines
// without external serialization; Recv is safe to call from one reader
// goroutine while Send is called from another.
type Codec struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    Config

	writeMu sync.Mutex
	sendCh  chan []byte
	closed  chan struct{}
	closeMu sync.Mutex
	once    sync.Once
}

// New wraps conn in a framed Codec. conn must be backed by a UNIX stream
// socket if FD passing (SendFDs/RecvFDs) will be used.
func New(conn net.Conn, cfg Config) *Codec {
	cfg = cfg.withDefaults()
	c := &Codec{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, cfg.Size),
		cfg:    cfg,
		closed: make(chan struct{}),
	}
	if cfg.NonBlocking {
		c.sendCh = make(chan []byte, 64)
		go c.writeLoop()
	}
	return c
}

// File returns a duplicated *os.File backing the underlying connection, for
// handing the channel off to a successor process via exec.Cmd.ExtraFiles
// during a supervisor upgrade. Only valid when Codec wraps a *net.UnixConn;
// the original fd and the returned one are independent and must each be
// closed.
func (c *Codec) File() (*os.File, error) {
	unixConn, ok := c.conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("channelcodec: File requires a unix socket, got %T", c.conn)
	}
	return unixConn.File()
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Codec) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Codec) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Send encodes message as JSON and writes it as one length-prefixed frame.
func (c *Codec) Send(message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("channelcodec: encode message: %w", err)
	}
	if len(payload) > c.cfg.MaxSize {
		return fmt.Errorf("channelcodec: %w: %d bytes exceeds max %d", ErrFrameTooLarge, len(payload), c.cfg.MaxSize)
	}

	if c.cfg.NonBlocking {
		select {
		case c.sendCh <- payload:
			return nil
		default:
			return ErrBackpressure
		}
	}

	return c.writeFrame(payload)
}

func (c *Codec) writeLoop() {
	for payload := range c.sendCh {
		if err := c.writeFrame(payload); err != nil {
			return
		}
	}
}

func (c *Codec) writeFrame(payload []byte) error {
	if c.isClosed() {
		return ErrPeerClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	frame := bufpool.Get(lengthPrefixSize + len(payload))
	defer bufpool.Put(frame)

	binary.BigEndian.PutUint32(frame[:lengthPrefixSize], uint32(len(payload)))
	copy(frame[lengthPrefixSize:], payload)

	if _, err := c.conn.Write(frame); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return ErrPeerClosed
		}
		return fmt.Errorf("channelcodec: write frame: %w", err)
	}
	return nil
}

// Recv reads and decodes the next frame into a raw JSON payload. Use
// RecvInto to decode directly into a typed value.
func (c *Codec) Recv() ([]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(c.reader, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
			return nil, ErrPeerClosed
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	if int(frameLen) > c.cfg.MaxSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, frameLen)
	if _, err := io.ReadFull(c.reader, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
			return nil, ErrPeerClosed
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return payload, nil
}

// RecvInto reads the next frame and JSON-decodes it into dst.
func (c *Codec) RecvInto(dst any) error {
	payload, err := c.Recv()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
