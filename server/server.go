package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"athena/task"
	"athena/trace"
	"athena/vm"

	"go.uber.org/zap"
)

// NPC is a script actors can talk to
type NPC struct {
	Name    string
	ID      int // owner of the NPC's script instances
	Program *vm.Program
}

// ActorStore is the part of variable storage the server manages
type ActorStore interface {
	BindAccount(character, account int)
	DropActor(actor int)
}

// Options configures a Server
type Options struct {
	Engine vm.Options // Host is replaced by the server
	Store  ActorStore // may be nil
	Logger *zap.Logger
}

// Server hosts NPC dialogues over line-oriented connections. Each
// connection is one actor.
type Server struct {
	eng   *vm.Engine
	sched *Scheduler
	store ActorStore
	log   *zap.Logger

	mu        sync.RWMutex
	npcs      map[string]*NPC
	owners    map[int]*NPC
	conns     map[int]*Connection // actor -> connection
	nextActor atomic.Int64
	listener  net.Listener
}

// NewServer creates a server and the engine it drives
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		store:  opts.Store,
		log:    opts.Logger,
		npcs:   make(map[string]*NPC),
		owners: make(map[int]*NPC),
		conns:  make(map[int]*Connection),
	}
	engOpts := opts.Engine
	engOpts.Host = s
	if engOpts.Logger == nil {
		engOpts.Logger = opts.Logger
	}
	eng, err := vm.NewEngine(engOpts)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	s.eng = eng
	s.sched = NewScheduler(eng, task.NewManager(), opts.Logger)
	s.sched.OnEnd = s.taskEnded
	return s, nil
}

// Engine returns the script engine
func (s *Server) Engine() *vm.Engine { return s.eng }

// Scheduler returns the scheduler
func (s *Server) Scheduler() *Scheduler { return s.sched }

// AddNPC compiles src and makes it reachable with "talk <name>"
func (s *Server) AddNPC(name string, id int, src string, startLine int) error {
	prog, err := s.eng.CompileNamed(name, src, startLine)
	if err != nil {
		return fmt.Errorf("npc %s: %w", name, err)
	}
	npc := &NPC{Name: name, ID: id, Program: prog}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.npcs[strings.ToLower(name)] = npc
	s.owners[id] = npc
	return nil
}

// NPCNames lists the NPCs in name order
func (s *Server) NPCNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.npcs))
	for _, npc := range s.npcs {
		names = append(names, npc.Name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) npc(name string) (*NPC, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	npc, ok := s.npcs[strings.ToLower(name)]
	return npc, ok
}

// RemoveNPC unregisters an NPC and kills every dialogue it owns
func (s *Server) RemoveNPC(name string) (int, error) {
	npc, ok := s.npc(name)
	if !ok {
		return 0, fmt.Errorf("no npc named %q", name)
	}
	s.mu.Lock()
	delete(s.npcs, strings.ToLower(name))
	delete(s.owners, npc.ID)
	s.mu.Unlock()
	return s.sched.KillOwner(npc.ID)
}

// Start starts the scheduler
func (s *Server) Start(ctx context.Context) {
	s.sched.Start(ctx)
}

// ListenAndServe accepts connections on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	s.Start(ctx)
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		socket, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.sched.Stop()
				return nil
			}
			s.log.Warn("accept error", zap.Error(err))
			continue
		}
		go s.Serve(NewTCPTransport(socket))
	}
}

// Addr returns the listening address once ListenAndServe is running
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs one connection until it disconnects
func (s *Server) Serve(t Transport) {
	actor := int(s.nextActor.Add(1))
	conn := NewConnection(actor, t)

	s.mu.Lock()
	s.conns[actor] = conn
	s.mu.Unlock()
	if s.store != nil {
		s.store.BindAccount(actor, actor)
	}

	s.log.Info("connection opened", zap.Int("actor", actor), zap.String("remote", t.RemoteAddr()))
	trace.Connection("open", int64(actor), actor, t.RemoteAddr())

	conn.handle(s)

	if _, err := s.sched.KillActor(actor); err != nil && !errors.Is(err, ErrSchedulerStopped) {
		s.log.Warn("kill dialogue on disconnect", zap.Int("actor", actor), zap.Error(err))
	}
	s.mu.Lock()
	delete(s.conns, actor)
	s.mu.Unlock()
	if s.store != nil {
		s.store.DropActor(actor)
	}
	conn.Close()

	s.log.Info("connection closed", zap.Int("actor", actor))
	trace.Connection("close", int64(actor), actor, "")
}

func (s *Server) conn(actor int) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[actor]
}

func (s *Server) speaker(owner int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if npc, ok := s.owners[owner]; ok {
		return npc.Name
	}
	return fmt.Sprintf("#%d", owner)
}

// taskEnded reports a failed dialogue to its actor
func (s *Server) taskEnded(t *task.Task) {
	if t.State.Err == nil {
		return
	}
	if c := s.conn(t.Actor()); c != nil {
		for _, line := range task.FormatTraceback(t) {
			c.Send(line)
		}
	}
}
