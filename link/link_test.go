package link

import (
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	flushes int32
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipePort) Flush() error                { atomic.AddInt32(&p.flushes, 1); return nil }
func (p *pipePort) Close() error {
	p.r.Close()
	return p.w.Close()
}

// newPipeLink returns a Link plus the device side of the connection.
func newPipeLink(t *testing.T) (*Link, *pipePort, *io.PipeReader, *io.PipeWriter) {
	hostR, devW := io.Pipe()
	devR, hostW := io.Pipe()
	port := &pipePort{r: hostR, w: hostW}
	l := New(port)
	t.Cleanup(func() {
		l.Close()
		devR.Close()
		devW.Close()
	})
	return l, port, devR, devW
}

func TestLink_ReadLine(t *testing.T) {
	l, _, _, dev := newPipeLink(t)

	go dev.Write([]byte("hello\r\nwor"))

	line, err := l.ReadLine(time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "hello\r\n", string(line))

	// partial data is returned once the timeout elapses
	line, err = l.ReadLine(50 * time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, "wor", string(line))

	start := time.Now()
	line, err = l.ReadLine(30 * time.Millisecond)
	assert.NoError(t, err)
	assert.Empty(t, line)
	assert.True(t, time.Since(start) >= 30*time.Millisecond)
}

func TestLink_ReadLine_Split(t *testing.T) {
	l, _, _, dev := newPipeLink(t)

	go func() {
		dev.Write([]byte("a,"))
		time.Sleep(10 * time.Millisecond)
		dev.Write([]byte("b\nc\n"))
	}()

	line, err := l.ReadLine(time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "a,b\n", string(line))

	line, err = l.ReadLine(time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "c\n", string(line))
}

func TestLink_ResetInputBuffer(t *testing.T) {
	l, port, _, dev := newPipeLink(t)

	_, err := dev.Write([]byte("stale\n"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	l.ResetInputBuffer()
	assert.EqualValues(t, 1, atomic.LoadInt32(&port.flushes))

	line, err := l.ReadLine(30 * time.Millisecond)
	assert.NoError(t, err)
	assert.Empty(t, line)

	go dev.Write([]byte("fresh\n"))
	line, err = l.ReadLine(time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "fresh\n", string(line))
}

func TestLink_Write(t *testing.T) {
	l, _, dev, _ := newPipeLink(t)

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := io.ReadAtLeast(dev, buf, 3)
		got <- string(buf[:n])
	}()

	n, err := l.WriteString("g\n ")
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "g\n ", <-got)
}

func TestLink_Close(t *testing.T) {
	l, _, _, _ := newPipeLink(t)

	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())

	_, err := l.ReadLine(time.Second)
	assert.Equal(t, ErrClosed, err)

	_, err = l.Write([]byte("h\n"))
	assert.Equal(t, ErrClosed, err)
}

func TestLink_PeerGone(t *testing.T) {
	l, _, _, dev := newPipeLink(t)
	unplugged := errors.New("unplugged")

	go func() {
		dev.Write([]byte("last\npart"))
		dev.CloseWithError(unplugged)
	}()

	line, err := l.ReadLine(time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "last\n", string(line))

	line, err = l.ReadLine(time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "part", string(line))

	_, err = l.ReadLine(time.Second)
	assert.Equal(t, unplugged, err)
}

func TestOpen_ConnectionError(t *testing.T) {
	_, err := Open(Config{Port: "/nonexistent/ttyARM0", SettleDelay: time.Hour})

	var cErr *ConnectionError
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, "/nonexistent/ttyARM0", cErr.Port)
}
