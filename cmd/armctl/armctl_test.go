package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/armctl/machine"
)

// scriptConn answers each command with a fixed set of lines.
type scriptConn struct {
	responses map[string][]string
	lines     chan []byte

	mx     sync.Mutex
	writes []string
}

func newScriptConn(responses map[string][]string) *scriptConn {
	return &scriptConn{
		responses: responses,
		lines:     make(chan []byte, 256),
	}
}

func (c *scriptConn) ReadLine(timeout time.Duration) ([]byte, error) {
	select {
	case line := <-c.lines:
		return line, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func (c *scriptConn) Write(b []byte) (int, error) {
	cmd := strings.TrimSpace(string(b))
	c.mx.Lock()
	c.writes = append(c.writes, cmd)
	c.mx.Unlock()
	for _, line := range c.responses[cmd] {
		c.lines <- []byte(line + "\r\n")
	}
	return len(b), nil
}

func (c *scriptConn) ResetInputBuffer() {}

func (c *scriptConn) Writes() []string {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]string(nil), c.writes...)
}

func testMachine(responses map[string][]string) (*machine.Machine, *scriptConn) {
	c := newScriptConn(responses)
	return machine.NewMachine(c, machine.Options{
		Window:            30 * time.Millisecond,
		PollTimeout:       5 * time.Millisecond,
		SampleInterval:    5 * time.Millisecond,
		RecordReadTimeout: 5 * time.Millisecond,
		InactivityTimeout: 20 * time.Millisecond,
	}), c
}

func TestMenu(t *testing.T) {
	m, c := testMachine(map[string][]string{
		"h":         {"Homing done"},
		"1":         {"M1 +100"},
		"m 10 20.5": {"T1=12.5 T2=40"},
	})

	in := strings.NewReader("h\n1\n1\nz\nm\n10\n20.5\ns\nabc\nq\n")
	var out bytes.Buffer
	err := newMenu(m, in, &out, t.TempDir()).run(context.Background())
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "Homing done")
	assert.Contains(t, s, "Motor 1 jog target: 200 steps")
	assert.Contains(t, s, "Motor 1 jog target: 300 steps")
	assert.Contains(t, s, "Unrecognized option")
	assert.Contains(t, s, "T1=12.5 T2=40")
	assert.Contains(t, s, "Invalid step count: abc")
	assert.Contains(t, s, "Exiting.")

	assert.Equal(t, []string{"h", "1", "1", "m 10 20.5"}, c.Writes())
}

func TestMenu_UpperCase(t *testing.T) {
	m, c := testMachine(nil)
	var out bytes.Buffer
	err := newMenu(m, strings.NewReader("M\n10\n20\nI\n1\n2\nq\n"), &out, t.TempDir()).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m 10 20", "i 1 2"}, c.Writes())
}

func TestMenu_EOF(t *testing.T) {
	m, c := testMachine(nil)
	var out bytes.Buffer
	err := newMenu(m, strings.NewReader("e\n"), &out, t.TempDir()).run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"e"}, c.Writes())
}

func TestMenu_Stream(t *testing.T) {
	m, _ := testMachine(map[string][]string{
		"o": {"1.5 2.5"},
	})
	dir := t.TempDir()

	input := make(chan string, 16)
	pw := func(s string) { input <- s }
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- newMenu(m, &chanReader{ch: input}, &out, dir).run(context.Background()) }()

	pw("b\n")
	pw("pos\n")
	assert.Eventually(t, func() bool {
		s := m.ActiveStream()
		return s != nil && s.Samples() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	pw("b\n")
	pw("q\n")
	require.NoError(t, <-done)
	assert.Nil(t, m.ActiveStream())
	assert.Contains(t, out.String(), "Streaming stopped after")

	data, err := os.ReadFile(filepath.Join(dir, "pos.tsv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "posacum1\tposacum2", lines[0])
	assert.Equal(t, "1.5\t2.5", lines[1])
}

// chanReader blocks until the next chunk of input is sent on ch.
type chanReader struct {
	ch  chan string
	buf []byte
}

func (r *chanReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		r.buf = []byte(<-r.ch)
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

type syncBuffer struct {
	mx  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.String()
}

func TestSafePath(t *testing.T) {
	ok, name := safePath("/data", "../../etc/passwd")
	assert.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/data/etc/passwd"), name)

	ok, name = safePath("", "traj.csv")
	assert.True(t, ok)
	assert.Equal(t, "traj.csv", name)
}

func TestAPI_Command(t *testing.T) {
	m, _ := testMachine(map[string][]string{
		"p": {"T1=10", "T2=20"},
	})
	a := newAPI(context.Background(), m, t.TempDir())

	req := httptest.NewRequest("POST", "/api/command", strings.NewReader("p\n\n d \n"))
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	dec := json.NewDecoder(rec.Body)
	var res commandResult
	require.NoError(t, dec.Decode(&res))
	assert.Equal(t, commandResult{Command: "p", Lines: []string{"T1=10", "T2=20"}}, res)

	res = commandResult{}
	require.NoError(t, dec.Decode(&res))
	assert.Equal(t, commandResult{Command: "d", Lines: []string{}}, res)
	assert.False(t, dec.More())

	req = httptest.NewRequest("GET", "/api/command", nil)
	rec = httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestAPI_DataFiles(t *testing.T) {
	m, _ := testMachine(nil)
	dir := t.TempDir()
	a := newAPI(context.Background(), m, dir)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		a.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := do("PUT", "/data/traj/a.csv", "1,2\n3,4\n")
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, "traj", "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "1,2\n3,4\n", string(data))

	rec = do("GET", "/data/traj/a.csv", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1,2\n3,4\n", rec.Body.String())

	rec = do("DELETE", "/data/traj/a.csv", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err = os.Stat(filepath.Join(dir, "traj", "a.csv"))
	assert.True(t, os.IsNotExist(err))

	rec = do("DELETE", "/data/traj/a.csv", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do("PUT", "/data/bad.csv", "1,2\nnot a point\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, err = os.Stat(filepath.Join(dir, "bad.csv"))
	assert.True(t, os.IsNotExist(err))

	// only trajectories are checked
	rec = do("PUT", "/data/notes.txt", "anything")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_PutFile_MkdirFails(t *testing.T) {
	m, _ := testMachine(nil)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), nil, 0644))
	a := newAPI(context.Background(), m, dir)

	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest("PUT", "/data/file/a.csv", strings.NewReader("1,2\n")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAPI_StreamExcludesSession(t *testing.T) {
	for i := 0; i < 20; i++ {
		m, _ := testMachine(map[string][]string{"o": {"1 2"}})
		a := newAPI(context.Background(), m, t.TempDir())

		var wg sync.WaitGroup
		var streamRec, recordRec *httptest.ResponseRecorder
		wg.Add(2)
		go func() {
			defer wg.Done()
			streamRec = httptest.NewRecorder()
			a.ServeHTTP(streamRec, httptest.NewRequest("POST", "/api/stream?file=pos.tsv", nil))
		}()
		go func() {
			defer wg.Done()
			recordRec = httptest.NewRecorder()
			a.ServeHTTP(recordRec, httptest.NewRequest("POST", "/api/record?file=r.csv", nil))
		}()
		wg.Wait()

		streamed := streamRec.Code == http.StatusOK
		recorded := recordRec.Code == http.StatusAccepted
		assert.True(t, streamed != recorded, "stream=%d record=%d", streamRec.Code, recordRec.Code)

		if s := m.ActiveStream(); s != nil {
			s.Stop()
		}
		assert.Eventually(t, func() bool {
			a.mx.Lock()
			defer a.mx.Unlock()
			return !a.busy
		}, 2*time.Second, 5*time.Millisecond)
	}
}

func TestAPI_Stream(t *testing.T) {
	m, _ := testMachine(map[string][]string{
		"o": {"3 4"},
	})
	dir := t.TempDir()
	a := newAPI(context.Background(), m, dir)

	post := func() streamStatus {
		rec := httptest.NewRecorder()
		a.ServeHTTP(rec, httptest.NewRequest("POST", "/api/stream?file=pos.tsv", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var st streamStatus
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
		return st
	}

	st := post()
	assert.True(t, st.Started)
	assert.Equal(t, "pos.tsv", st.File)

	st = post()
	assert.False(t, st.Started)
	assert.True(t, st.Active)
	assert.Equal(t, "already active", st.Message)

	// record and play are refused while streaming
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest("POST", "/api/record?file=r.csv", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/stream", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, m.ActiveStream())

	data, err := os.ReadFile(filepath.Join(dir, "pos.tsv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "posacum1\tposacum2\n"))
}

func TestAPI_SessionBusy(t *testing.T) {
	m, _ := testMachine(nil)
	a := newAPI(context.Background(), m, t.TempDir())
	a.busy = true

	for _, path := range []string{"/api/record?file=a.csv", "/api/play?file=a.csv", "/api/stream?file=a.tsv"} {
		rec := httptest.NewRecorder()
		a.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
		assert.Equal(t, http.StatusConflict, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest("POST", "/api/play", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
