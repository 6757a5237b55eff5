// Package spjs reaches a serial port shared by a Serial Port JSON Server
// over its websocket API.
package spjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const reconnectDelay = 3 * time.Second

type message struct {
	done    chan struct{}
	payload []byte
}

type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}
type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}
type SerialPortList struct {
	SerialPorts []SerialPort
}
type SerialPort struct {
	Name         string
	Friendly     string
	SerialNumber string
	IsOpen       bool
	Baud         int
}

// Port is a serial port on a remote SPJS instance.
//
// It satisfies link.Port.
type Port struct {
	url  string
	name string
	baud int

	outgoing chan message
	data     chan []byte
	closeCh  chan struct{}

	closeOnce sync.Once

	rMx     sync.Mutex
	pending []byte
}

// Dial connects to the SPJS websocket at url and opens the
// named port at baud once the server lists it.
//
// Connection failures are retried in the background.
func Dial(url, name string, baud int) *Port {
	p := &Port{
		url:      url,
		name:     name,
		baud:     baud,
		outgoing: make(chan message, 1000),
		data:     make(chan []byte, 1000),
		closeCh:  make(chan struct{}),
	}

	go p.loop()

	return p
}

func parseMessage(data []byte, msg map[string]json.RawMessage) (val interface{}, err error) {
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Cmd", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

// handle reacts to a single decoded server message.
func (p *Port) handle(val interface{}) {
	switch msg := val.(type) {
	case *DataFrame:
		if msg.Port != p.name || msg.Data == "" {
			return
		}
		select {
		case p.data <- []byte(msg.Data):
		case <-p.closeCh:
		}
	case *SerialPortList:
		for _, port := range msg.SerialPorts {
			if port.Name != p.name || port.IsOpen {
				continue
			}
			go p.WriteString("open " + p.name + " " + strconv.Itoa(p.baud) + " default")
		}
	case *ErrorMessage:
		log.Println("ERROR: spjs:", msg.Error)
	}
}

func (p *Port) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Println("ERROR: read:", err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		var msg map[string]json.RawMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			log.Println("ERROR: read:", err)
			continue
		}
		val, err := parseMessage(data, msg)
		if err != nil {
			log.Println("ERROR: parse:", err)
			continue
		}
		p.handle(val)
	}
}

func (p *Port) loop() {
	var nextUp message

reconnect:
	for {
		select {
		case <-p.closeCh:
			return
		default:
		}
		log.Println("Connecting to", p.url)
		ws, _, err := websocket.DefaultDialer.Dial(p.url, nil)
		if err != nil {
			log.Println("ERROR: connect:", err)
			select {
			case <-p.closeCh:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		log.Println("Connected.")
		ch := make(chan struct{})
		go p.readLoop(ws, ch)
		go p.WriteString("list") // refresh list on reconnect

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					log.Println("ERROR: send:", err)
					ws.Close()
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-p.closeCh:
				ws.Close()
				return
			case <-ch:
				continue reconnect
			case nextUp = <-p.outgoing:
			}
		}
	}
}

// WriteString sends a raw SPJS command.
func (p *Port) WriteString(data string) error {
	ch := make(chan struct{})
	select {
	case p.outgoing <- message{done: ch, payload: []byte(data)}:
	case <-p.closeCh:
		return io.ErrClosedPipe
	}
	select {
	case <-ch:
		return nil
	case <-p.closeCh:
		return io.ErrClosedPipe
	}
}

type sendJSON struct {
	Port string `json:"P"`
	Data []sendData
}
type sendData struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

var lastID int64

func nextID() string {
	id := atomic.AddInt64(&lastID, 1)
	return "arm_" + strconv.FormatInt(id, 36)
}

func (p *Port) encode(b []byte) []byte {
	data, err := json.Marshal(sendJSON{
		Port: p.name,
		Data: []sendData{{Data: string(b), ID: nextID()}},
	})
	if err != nil {
		// shouldn't happen since we control everything that's sent out
		log.Panicln("ERROR: sendjson (marshal):", err)
	}
	return append([]byte("sendjson "), data...)
}

// Write queues b verbatim for the remote port.
func (p *Port) Write(b []byte) (int, error) {
	err := p.WriteString(string(p.encode(b)))
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Read returns data received from the remote port.
func (p *Port) Read(b []byte) (int, error) {
	p.rMx.Lock()
	defer p.rMx.Unlock()

	if len(p.pending) == 0 {
		select {
		case p.pending = <-p.data:
		case <-p.closeCh:
			return 0, io.ErrClosedPipe
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Close stops the connection. The remote port is left open for other clients.
func (p *Port) Close() error {
	p.closeOnce.Do(func() { close(p.closeCh) })
	return nil
}
