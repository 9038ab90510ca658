package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Telnet command bytes (RFC 854)
const (
	tnIAC  = 255
	tnDONT = 254
	tnDO   = 253
	tnWONT = 252
	tnWILL = 251
	tnSB   = 250
	tnSE   = 240
)

// maxLineLength caps a single answer line; the excess is dropped
const maxLineLength = 1024

// ErrTransportClosed is returned by writes after Close
var ErrTransportClosed = errors.New("transport closed")

// Transport carries the line-oriented dialogue between a player and the server
type Transport interface {
	ReadLine() (string, error)
	WriteLine(string) error
	Close() error
	RemoteAddr() string
}

type telnetState int

const (
	tsText      telnetState = iota
	tsCommand               // after IAC
	tsOption                // after WILL/WONT/DO/DONT
	tsSubneg                // inside SB ... IAC SE
	tsSubnegIAC             // IAC seen inside a subnegotiation
)

// telnetReader strips option negotiation from a client byte stream and
// splits it into lines. CR, LF and CRLF all end a line.
type telnetReader struct {
	r         *bufio.Reader
	state     telnetState
	lastWasCR bool
}

// text feeds one byte through the state machine and reports whether it is
// part of the line text
func (tr *telnetReader) text(b byte) bool {
	switch tr.state {
	case tsCommand:
		switch b {
		case tnSB:
			tr.state = tsSubneg
		case tnWILL, tnWONT, tnDO, tnDONT:
			tr.state = tsOption
		default:
			// IAC IAC and single byte commands carry no text
			tr.state = tsText
		}
		return false
	case tsOption:
		tr.state = tsText
		return false
	case tsSubneg:
		if b == tnIAC {
			tr.state = tsSubnegIAC
		}
		return false
	case tsSubnegIAC:
		if b == tnSE {
			tr.state = tsText
		} else {
			tr.state = tsSubneg
		}
		return false
	}
	if b == tnIAC {
		tr.state = tsCommand
		return false
	}
	return true
}

func (tr *telnetReader) readLine() (string, error) {
	var line strings.Builder
	for {
		b, err := tr.r.ReadByte()
		if err != nil {
			if err == io.EOF && line.Len() > 0 {
				return line.String(), nil
			}
			return "", err
		}
		if !tr.text(b) {
			continue
		}
		switch {
		case b == '\r':
			tr.lastWasCR = true
			return line.String(), nil
		case b == '\n':
			if tr.lastWasCR {
				tr.lastWasCR = false
				continue
			}
			return line.String(), nil
		}
		tr.lastWasCR = false
		// Printable ASCII, tab and high bytes; other controls are dropped
		if (b >= 32 && b != 127 || b == '\t') && line.Len() < maxLineLength {
			line.WriteByte(b)
		}
	}
}

// TCPTransport serves one telnet-style client socket
type TCPTransport struct {
	conn   net.Conn
	in     telnetReader
	mu     sync.Mutex
	writer *bufio.Writer
}

// NewTCPTransport wraps an accepted connection
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{
		conn:   conn,
		in:     telnetReader{r: bufio.NewReader(conn)},
		writer: bufio.NewWriter(conn),
	}
}

// ReadLine blocks until the client sends a complete line or the socket
// closes. A final unterminated line is returned before io.EOF.
func (t *TCPTransport) ReadLine() (string, error) {
	return t.in.readLine()
}

// WriteLine sends msg followed by CRLF. A literal 0xFF in dialogue text is
// doubled so the client does not read it as a telnet command.
func (t *TCPTransport) WriteLine(msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if strings.IndexByte(msg, tnIAC) >= 0 {
		msg = strings.ReplaceAll(msg, "\xff", "\xff\xff")
	}
	if _, err := t.writer.WriteString(msg + "\r\n"); err != nil {
		return err
	}
	return t.writer.Flush()
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

func (t *TCPTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// PipeTransport is an in-memory Transport. Tests play the client side
// with Send and Receive.
type PipeTransport struct {
	input  chan string
	output chan string
	mu     sync.Mutex
	closed bool
}

func NewPipeTransport() *PipeTransport {
	return &PipeTransport{
		input:  make(chan string, 100),
		output: make(chan string, 1024),
	}
}

func (t *PipeTransport) ReadLine() (string, error) {
	line, ok := <-t.input
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (t *PipeTransport) WriteLine(msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.output <- msg
	return nil
}

func (t *PipeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.input)
		close(t.output)
	}
	return nil
}

func (t *PipeTransport) RemoteAddr() string {
	return "pipe"
}

// Send queues a line from the client. It reports false once the server
// side has closed the pipe.
func (t *PipeTransport) Send(line string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.input <- line
	return true
}

// Receive waits up to timeout for the next server line. ok is false on
// timeout or when the pipe is closed and drained.
func (t *PipeTransport) Receive(timeout time.Duration) (line string, ok bool) {
	select {
	case line, ok = <-t.output:
		return line, ok
	case <-time.After(timeout):
		return "", false
	}
}
