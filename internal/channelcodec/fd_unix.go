//go:build unix

package channelcodec

import (
	"encoding/json"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

const maxFDsPerFrame = 16

// SendFDs writes message as a normal framed payload, then passes fds as
// ancillary SCM_RIGHTS data over the same UNIX stream socket. Used only
// during listener-socket handoff and supervisor upgrade.
func (c *Codec) SendFDs(message any, fds []int) error {
	unixConn, ok := c.conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("channelcodec: SendFDs requires a unix socket, got %T", c.conn)
	}
	if len(fds) > maxFDsPerFrame {
		return fmt.Errorf("channelcodec: too many fds in one frame: %d > %d", len(fds), maxFDsPerFrame)
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("channelcodec: encode message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	rights := unix.UnixRights(fds...)
	if _, _, err := unixConn.WriteMsgUnix(frameBytes(payload), rights, nil); err != nil {
		return fmt.Errorf("channelcodec: send fds: %w", err)
	}
	return nil
}

// RecvFDs reads one framed payload plus any ancillary file descriptors sent
// alongside it. The caller owns the returned fds and must close them.
func (c *Codec) RecvFDs(dst any) ([]int, error) {
	unixConn, ok := c.conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("channelcodec: RecvFDs requires a unix socket, got %T", c.conn)
	}

	msgBuf := make([]byte, c.cfg.MaxSize+lengthPrefixSize)
	oob := make([]byte, unix.CmsgSpace(maxFDsPerFrame*4))

	n, oobn, _, _, err := unixConn.ReadMsgUnix(msgBuf, oob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n < lengthPrefixSize {
		return nil, ErrMalformed
	}

	payload := msgBuf[lengthPrefixSize:n]
	if err := json.Unmarshal(payload, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var fds []int
	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return nil, fmt.Errorf("channelcodec: parse ancillary data: %w", err)
		}
		for _, cmsg := range cmsgs {
			parsed, err := unix.ParseUnixRights(&cmsg)
			if err != nil {
				continue
			}
			fds = append(fds, parsed...)
		}
	}

	return fds, nil
}

func frameBytes(payload []byte) []byte {
	frame := make([]byte, lengthPrefixSize+len(payload))
	frame[0] = byte(len(payload) >> 24)
	frame[1] = byte(len(payload) >> 16)
	frame[2] = byte(len(payload) >> 8)
	frame[3] = byte(len(payload))
	copy(frame[lengthPrefixSize:], payload)
	return frame
}

// ClearCloexec clears FD_CLOEXEC so fd survives exec, used on the end of a
// socketpair handed to a freshly spawned worker or successor supervisor.
// Every other inherited fd keeps FD_CLOEXEC set to avoid leaking extra
// listener copies or secrets across the fork.
func ClearCloexec(fd int) error {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, 0)
	if err != nil {
		return fmt.Errorf("channelcodec: clear cloexec on fd %d: %w", fd, err)
	}
	return nil
}
