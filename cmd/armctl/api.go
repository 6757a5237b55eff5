package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/mastercactapus/armctl/coord"
	"github.com/mastercactapus/armctl/machine"
	"github.com/mastercactapus/armctl/trajectory"
)

var errBusy = errors.New("a record or play session is already running")

type api struct {
	http.Handler
	m       *machine.Machine
	dataDir string
	sse     *sse.Server

	// ctx bounds streams started over HTTP; they outlive the request.
	ctx context.Context

	mx   sync.Mutex
	busy bool
}

type commandResult struct {
	Command string   `json:"command"`
	Lines   []string `json:"lines"`
	Error   string   `json:"error,omitempty"`
}

type sessionEvent struct {
	Kind   string `json:"kind"`
	File   string `json:"file"`
	State  string `json:"state"`
	Points int    `json:"points"`
	Error  string `json:"error,omitempty"`
}

type streamStatus struct {
	Active  bool   `json:"active"`
	Started bool   `json:"started"`
	File    string `json:"file,omitempty"`
	Samples int    `json:"samples"`
	Message string `json:"message,omitempty"`
}

func newAPI(ctx context.Context, m *machine.Machine, dir string) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		m:       m,
		dataDir: dir,
		ctx:     ctx,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(ioutil.Discard, "", 0),
		}),
	}

	fs := http.FileServer(http.Dir(dir))
	r.PathPrefix("/data/").Handler(http.StripPrefix("/data", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case "GET":
			fs.ServeHTTP(w, req)
		case "PUT":
			a.putFile(w, req)
		case "DELETE":
			a.deleteFile(w, req)
		default:
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	})))

	r.HandleFunc("/api/command", a.command).Methods("POST")
	r.HandleFunc("/api/record", a.record).Methods("POST")
	r.HandleFunc("/api/play", a.play).Methods("POST")
	r.HandleFunc("/api/stream", a.startStream).Methods("POST")
	r.HandleFunc("/api/stream", a.stopStream).Methods("DELETE")
	r.HandleFunc("/api/stream", a.getStream).Methods("GET")

	r.PathPrefix("/events/").Handler(a.sse)

	return a
}

func safePath(base, name string) (bool, string) {
	if filepath.Separator != '/' && strings.ContainsRune(name, filepath.Separator) {
		log.Println("invalid path '" + name + "'")
		return false, ""
	}
	dir := base
	if dir == "" {
		dir = "."
	}
	fullName := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+name)))
	return true, fullName
}

func (a *api) publish(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: marshal json: %+v", err)
		return
	}
	a.sse.SendMessage(channel, sse.SimpleMessage(string(data)))
}

func (a *api) command(w http.ResponseWriter, req *http.Request) {
	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, cmd := range strings.Split(string(data), "\n") {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		lines, err := a.m.Send(cmd)
		res := commandResult{Command: cmd, Lines: lines}
		if res.Lines == nil {
			res.Lines = []string{}
		}
		if err != nil {
			log.Printf("ERROR: command %q: %+v", cmd, err)
			res.Error = err.Error()
		}
		err = enc.Encode(res)
		if err != nil {
			log.Println("ERROR: encode:", err)
			return
		}
	}
}

// acquire claims the link for a record or play session.
func (a *api) acquire() error {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.busy {
		return errBusy
	}
	if a.m.ActiveStream() != nil {
		return errors.New("position streaming is active")
	}
	a.busy = true
	return nil
}

func (a *api) release() {
	a.mx.Lock()
	a.busy = false
	a.mx.Unlock()
}

func (a *api) sessionFile(w http.ResponseWriter, req *http.Request) (string, bool) {
	file := req.FormValue("file")
	if file == "" {
		http.Error(w, "missing 'file' parameter", http.StatusBadRequest)
		return "", false
	}
	ok, name := safePath(a.dataDir, file)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return "", false
	}
	return name, true
}

// session runs fn in the background, reporting its outcome on /events/session.
func (a *api) session(w http.ResponseWriter, req *http.Request, kind string, fn func(name string) (string, int, error)) {
	name, ok := a.sessionFile(w, req)
	if !ok {
		return
	}
	err := a.acquire()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	file := req.FormValue("file")
	a.publish("/events/session", sessionEvent{Kind: kind, File: file, State: "STARTED"})
	go func() {
		defer a.release()
		state, n, err := fn(name)
		ev := sessionEvent{Kind: kind, File: file, State: state, Points: n}
		if err != nil {
			log.Printf("ERROR: %s '%s': %+v", kind, name, err)
			ev.Error = err.Error()
		}
		a.publish("/events/session", ev)
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (a *api) record(w http.ResponseWriter, req *http.Request) {
	a.session(w, req, "record", func(name string) (string, int, error) {
		res, err := a.m.RecordFile(name)
		if res == nil {
			return string(machine.StateIdle), 0, err
		}
		return string(res.State), res.Points, err
	})
}

func (a *api) play(w http.ResponseWriter, req *http.Request) {
	a.session(w, req, "play", func(name string) (string, int, error) {
		res, err := a.m.PlayFile(name)
		if err != nil {
			n := 0
			if res != nil {
				n = res.Points
			}
			return "FAILED", n, err
		}
		return "DONE", res.Points, nil
	})
}

func (a *api) writeStatus(w http.ResponseWriter, st streamStatus) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(st)
	if err != nil {
		log.Println("ERROR: encode:", err)
	}
}

func (a *api) startStream(w http.ResponseWriter, req *http.Request) {
	name, ok := a.sessionFile(w, req)
	if !ok {
		return
	}

	// held until the stream is registered so acquire cannot slip in between
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.busy {
		http.Error(w, errBusy.Error(), http.StatusConflict)
		return
	}

	s, started, err := a.m.StartStreamFile(a.ctx, name, func(p coord.Point) {
		a.publish("/events/position", p)
	})
	if err != nil {
		log.Printf("ERROR: stream '%s': %+v", name, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	st := streamStatus{Active: true, Started: started, Samples: s.Samples()}
	if started {
		st.File = req.FormValue("file")
	} else {
		st.Message = "already active"
	}
	a.writeStatus(w, st)
}

func (a *api) stopStream(w http.ResponseWriter, req *http.Request) {
	s := a.m.ActiveStream()
	if s == nil {
		a.writeStatus(w, streamStatus{Message: "not active"})
		return
	}
	err := s.Stop()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.writeStatus(w, streamStatus{Samples: s.Samples()})
}

func (a *api) getStream(w http.ResponseWriter, req *http.Request) {
	s := a.m.ActiveStream()
	if s == nil {
		a.writeStatus(w, streamStatus{})
		return
	}
	a.writeStatus(w, streamStatus{Active: true, Samples: s.Samples()})
}

func (a *api) putFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.dataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	data, err := ioutil.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filepath.Ext(name) == ".csv" {
		// trajectories must be playable as uploaded
		_, err = trajectory.ReadAll(bytes.NewReader(data))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	err = os.MkdirAll(filepath.Dir(name), 0755)
	if err != nil {
		log.Printf("ERROR: mkdir '%s': %+v", filepath.Dir(name), err)
		http.Error(w, err.Error(), 500)
		return
	}
	err = ioutil.WriteFile(name, data, 0644)
	if err != nil {
		log.Printf("ERROR: write '%s': %+v", name, err)
		http.Error(w, err.Error(), 500)
		return
	}
}

func (a *api) deleteFile(w http.ResponseWriter, req *http.Request) {
	ok, name := safePath(a.dataDir, req.URL.Path)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	err := os.Remove(name)
	if err != nil {
		log.Printf("ERROR: delete '%s': %+v", name, err)
		http.Error(w, err.Error(), 500)
		return
	}
}

func newServeCmd(f *rootFlags) *cobra.Command {
	var addr, dir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				f.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("dir") {
				f.cfg.Server.DataDir = dir
			}

			m, l, err := f.connect()
			if err != nil {
				return err
			}
			defer l.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a := newAPI(ctx, m, f.cfg.Server.DataDir)
			defer a.sse.Shutdown()

			log.Println("Listening on", f.cfg.Server.Addr)
			return http.ListenAndServe(f.cfg.Server.Addr, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "*")
				log.Printf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
				a.ServeHTTP(w, req)
			}))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9091", "Address to bind the server to.")
	cmd.Flags().StringVar(&dir, "dir", "./data", "Data directory to use.")

	return cmd
}
