package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"athena/builtins"
	"athena/task"

	"go.uber.org/zap"
)

// Connection is one actor's line-oriented session
type Connection struct {
	Actor       int
	transport   Transport
	connectedAt time.Time

	mu        sync.Mutex
	lastInput time.Time
	closed    bool
}

// NewConnection creates a connection for actor over t
func NewConnection(actor int, t Transport) *Connection {
	now := time.Now()
	return &Connection{
		Actor:       actor,
		transport:   t,
		connectedAt: now,
		lastInput:   now,
	}
}

// Send writes a line; errors on a closed connection are dropped
func (c *Connection) Send(message string) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.transport.WriteLine(message)
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.transport.Close()
}

// LastInput returns when the actor last sent a line
func (c *Connection) LastInput() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInput
}

// handle reads lines until the actor quits or the transport fails.
// Inside a dialogue every line answers the script; outside it lines
// are commands.
func (c *Connection) handle(s *Server) {
	c.Send("Welcome. Type 'help' for commands.")
	for {
		line, err := c.transport.ReadLine()
		if err != nil {
			return
		}
		c.mu.Lock()
		c.lastInput = time.Now()
		c.mu.Unlock()

		line = strings.TrimSpace(line)
		if strings.EqualFold(line, "quit") {
			c.Send("Goodbye.")
			return
		}

		if s.sched.Tasks().ForActor(c.Actor) != nil {
			c.answer(s, line)
			continue
		}
		c.command(s, line)
	}
}

func (c *Connection) answer(s *Server, line string) {
	err := s.sched.Deliver(c.Actor, builtins.ParseAnswer(line))
	switch {
	case err == nil, errors.Is(err, ErrNoDialogue):
	case errors.Is(err, ErrSleeping):
		c.Send("[wait]")
	default:
		s.log.Warn("deliver failed", zap.Int("actor", c.Actor), zap.Error(err))
	}
}

func (c *Connection) command(s *Server, line string) {
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(verb) {
	case "":
	case "help":
		c.Send("talk <npc>  start a dialogue")
		c.Send("npcs        list who you can talk to")
		c.Send("quit        disconnect")
	case "npcs":
		c.Send(strings.Join(s.NPCNames(), ", "))
	case "talk":
		npc, ok := s.npc(arg)
		if !ok {
			c.Send(fmt.Sprintf("There is no %q here.", arg))
			return
		}
		if _, err := s.sched.StartScript(task.TaskDialogue, npc.Name, npc.Program, c.Actor, npc.ID); err != nil {
			s.log.Warn("start dialogue", zap.Int("actor", c.Actor), zap.String("npc", npc.Name), zap.Error(err))
			c.Send("You cannot talk right now.")
		}
	default:
		c.Send("I don't understand that.")
	}
}
