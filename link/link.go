package link

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

const (
	readBufferSize = 1024
	chunkBacklog   = 256
)

// ErrClosed is returned by operations on a closed Link.
var ErrClosed = errors.New("link closed")

// Link is a line-oriented view of a Port shared by every protocol component.
//
// Reads are served by a single background goroutine; only one caller
// should consume lines at a time.
type Link struct {
	port Port

	chunks  chan []byte
	done    chan struct{}
	closeCh chan struct{}
	readErr error

	rMx     sync.Mutex
	pending []byte

	wMx sync.Mutex

	closeOnce sync.Once
}

// New starts reading from port. The Link takes ownership of port.
func New(port Port) *Link {
	l := &Link{
		port:    port,
		chunks:  make(chan []byte, chunkBacklog),
		done:    make(chan struct{}),
		closeCh: make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// isIdle reports read errors that only mean no data arrived in time.
//
// tarm/serial reports an elapsed ReadTimeout as io.EOF on posix systems.
func isIdle(err error) bool {
	if err == io.EOF {
		return true
	}
	var nErr net.Error
	if errors.As(err, &nErr) && nErr.Timeout() {
		return true
	}
	return false
}

func (l *Link) readLoop() {
	defer close(l.done)
	buf := make([]byte, readBufferSize)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case l.chunks <- data:
			case <-l.closeCh:
				return
			}
		}
		if err == nil {
			continue
		}
		select {
		case <-l.closeCh:
			return
		default:
		}
		if isIdle(err) {
			continue
		}
		l.readErr = err
		return
	}
}

func (l *Link) takeLine() []byte {
	i := bytes.IndexByte(l.pending, '\n')
	if i < 0 {
		return nil
	}
	line := make([]byte, i+1)
	copy(line, l.pending)
	l.pending = l.pending[i+1:]
	return line
}

// drain moves everything the reader queued into pending.
func (l *Link) drain() {
	for {
		select {
		case data := <-l.chunks:
			l.pending = append(l.pending, data...)
		default:
			return
		}
	}
}

func (l *Link) takeAll() []byte {
	line := l.pending
	l.pending = nil
	return line
}

// ReadLine returns the next newline-terminated line, including the newline.
//
// If no full line arrives within timeout, whatever partial data was
// received is returned instead; an empty result with a nil error means
// nothing arrived at all.
func (l *Link) ReadLine(timeout time.Duration) ([]byte, error) {
	l.rMx.Lock()
	defer l.rMx.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if line := l.takeLine(); line != nil {
			return line, nil
		}

		select {
		case <-l.closeCh:
			return nil, ErrClosed
		case data := <-l.chunks:
			l.pending = append(l.pending, data...)
		case <-timer.C:
			return l.takeAll(), nil
		case <-l.done:
			l.drain()
			if line := l.takeLine(); line != nil {
				return line, nil
			}
			if len(l.pending) > 0 {
				return l.takeAll(), nil
			}
			if l.readErr != nil {
				return nil, l.readErr
			}
			return nil, ErrClosed
		}
	}
}

// Write sends p as-is.
func (l *Link) Write(p []byte) (int, error) {
	select {
	case <-l.closeCh:
		return 0, ErrClosed
	default:
	}
	l.wMx.Lock()
	defer l.wMx.Unlock()
	return l.port.Write(p)
}

func (l *Link) WriteString(s string) (int, error) {
	return l.Write([]byte(s))
}

// ResetInputBuffer discards all input received so far.
func (l *Link) ResetInputBuffer() {
	l.rMx.Lock()
	defer l.rMx.Unlock()

	if f, ok := l.port.(flusher); ok {
		f.Flush()
	}
	l.pending = nil
	for {
		select {
		case <-l.chunks:
		default:
			return
		}
	}
}

// Close releases the port. Only the first call closes it.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closeCh)
		err = l.port.Close()
	})
	return err
}
