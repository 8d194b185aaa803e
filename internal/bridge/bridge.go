//go:build unix

// Package bridge moves bytes between a pseudo-terminal primary and the rest
// of the process without blocking either side.
//
// One locked OS thread multiplexes the primary and an internal wake pipe
// with poll(2). Output read from the primary is delivered in order on a
// channel; input passed to Send is written in order as the primary becomes
// writable.
package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

const defaultReadSize = 64 * 1024

// ErrClosed is returned by Send after the bridge has shut down.
var ErrClosed = errors.New("bridge closed")

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger for I/O diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithReadSize sets the size of the read buffer.
func WithReadSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.readSize = n
		}
	}
}

// Bridge is a bidirectional byte pump on a pseudo-terminal primary.
//
// The primary is borrowed: Close stops the bridge but does not close it.
type Bridge struct {
	primary  *os.File
	fd       int
	wakeR    int
	wakeW    int
	logger   *slog.Logger
	readSize int

	mu      sync.Mutex
	inbound [][]byte
	closed  bool

	out    *queue
	output chan []byte
	stop   chan struct{}
	done   chan struct{}
	err    error

	closeOnce sync.Once
}

// New puts the primary into non-blocking mode and starts the I/O thread.
func New(primary *os.File, opts ...Option) (*Bridge, error) {
	// Fd switches the file to blocking mode, so non-blocking is set after it.
	fd := int(primary.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set primary non-blocking: %w", err)
	}

	var pipe [2]int
	if err := unix.Pipe(pipe[:]); err != nil {
		return nil, fmt.Errorf("create wake pipe: %w", err)
	}

	for _, p := range pipe {
		unix.CloseOnExec(p)

		if err := unix.SetNonblock(p, true); err != nil {
			_ = unix.Close(pipe[0])
			_ = unix.Close(pipe[1])

			return nil, fmt.Errorf("set wake pipe non-blocking: %w", err)
		}
	}

	b := &Bridge{
		primary:  primary,
		fd:       fd,
		wakeR:    pipe[0],
		wakeW:    pipe[1],
		logger:   slog.Default(),
		readSize: defaultReadSize,
		out:      newQueue(),
		output:   make(chan []byte),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	go b.forward()

	return b, nil
}

// Output delivers chunks read from the primary in order. It is closed after
// the I/O thread stops and every chunk read before then has been delivered,
// or immediately once Close is called.
func (b *Bridge) Output() <-chan []byte {
	return b.output
}

// Send queues p for writing to the primary. The bytes are copied.
func (b *Bridge) Send(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if len(p) == 0 {
		return nil
	}

	b.inbound = append(b.inbound, bytes.Clone(p))
	b.wake()

	return nil
}

// Done is closed when the I/O thread has stopped.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Err returns the error that stopped the I/O thread. It is io.EOF when the
// subordinate side hung up and nil after Close. Valid once Done is closed.
func (b *Bridge) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Close stops the I/O thread and waits for it to exit. Queued input that has
// not been written is discarded.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.wake()
		b.mu.Unlock()

		close(b.stop)
		<-b.done

		_ = unix.Close(b.wakeR)
		_ = unix.Close(b.wakeW)
	})

	return nil
}

// wake nudges the I/O thread out of poll. Callers hold mu.
func (b *Bridge) wake() {
	_, err := unix.Write(b.wakeW, []byte{1})
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		b.logger.Debug("Wake pipe write failed", slog.String("component", "bridge"), slog.String("error", err.Error()))
	}
}

func (b *Bridge) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := b.loop()

	b.mu.Lock()
	b.closed = true
	b.inbound = nil
	b.mu.Unlock()

	b.err = err
	b.out.close()
	close(b.done)

	runtime.KeepAlive(b.primary)

	if err != nil && !errors.Is(err, io.EOF) {
		b.logger.Warn("Bridge stopped", slog.String("component", "bridge"), slog.String("error", err.Error()))
	}
}

func (b *Bridge) loop() error {
	buf := make([]byte, b.readSize)
	scratch := make([]byte, 64)

	var pending []byte

	fds := []unix.PollFd{
		{Fd: int32(b.fd)},
		{Fd: int32(b.wakeR), Events: unix.POLLIN},
	}

	for {
		fds[0].Events = unix.POLLIN
		if len(pending) > 0 {
			fds[0].Events |= unix.POLLOUT
		}

		fds[0].Revents = 0
		fds[1].Revents = 0

		if _, err := unix.Poll(fds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}

			return fmt.Errorf("poll: %w", err)
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			drainWake(b.wakeR, scratch)
		}

		b.mu.Lock()
		closed := b.closed
		for _, chunk := range b.inbound {
			pending = append(pending, chunk...)
		}
		b.inbound = b.inbound[:0]
		b.mu.Unlock()

		if closed {
			return nil
		}

		revents := fds[0].Revents
		if revents&unix.POLLNVAL != 0 {
			return fmt.Errorf("poll primary: %w", unix.EBADF)
		}

		if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			if err := b.read(buf); err != nil {
				return err
			}
		}

		if revents&unix.POLLOUT != 0 && len(pending) > 0 {
			n, err := b.write(pending)
			if err != nil {
				return err
			}

			pending = pending[n:]
			if len(pending) == 0 {
				pending = nil
			}
		}
	}
}

func (b *Bridge) read(buf []byte) error {
	n, err := unix.Read(b.fd, buf)

	switch {
	case n > 0:
		b.out.push(bytes.Clone(buf[:n]))
		return nil
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return nil
	case err == nil, errors.Is(err, unix.EIO):
		// Every subordinate descriptor is closed.
		return io.EOF
	default:
		return fmt.Errorf("read primary: %w", err)
	}
}

func (b *Bridge) write(p []byte) (int, error) {
	n, err := unix.Write(b.fd, p)

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return max(n, 0), nil
	case errors.Is(err, unix.EIO):
		return 0, io.EOF
	default:
		return 0, fmt.Errorf("write primary: %w", err)
	}
}

func drainWake(fd int, scratch []byte) {
	for {
		n, err := unix.Read(fd, scratch)
		if n <= 0 || err != nil {
			return
		}
	}
}

func (b *Bridge) forward() {
	defer close(b.output)

	for {
		chunk, ok := b.out.next(b.stop)
		if !ok {
			return
		}

		select {
		case b.output <- chunk:
		case <-b.stop:
			return
		}
	}
}
