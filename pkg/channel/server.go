package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/0xmhha/cortex-watch/pkg/logger"
	"github.com/0xmhha/cortex-watch/pkg/watcher"
)

const writeTimeout = 5 * time.Second

// ServerConfig contains manager configuration.
type ServerConfig struct {
	// Addr is the TCP address to listen on, normally 127.0.0.1:<port>.
	Addr string
}

// Server is the watch manager. It owns the filesystem watcher and routes
// its events to connected clients.
type Server struct {
	cfg     ServerConfig
	watcher watcher.Watcher
	logger  logger.Logger
	pid     int

	lnMu     sync.Mutex
	listener net.Listener

	mu      sync.Mutex
	nextID  uint64
	clients map[uint64]*serverConn
	owners  map[string]map[uint64]bool // path -> owning client ids
}

type serverConn struct {
	id   uint64
	conn net.Conn

	encMu sync.Mutex
	enc   *json.Encoder
}

func (sc *serverConn) send(m Message) error {
	sc.encMu.Lock()
	defer sc.encMu.Unlock()

	if err := sc.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return sc.enc.Encode(m)
}

// NewServer creates a manager that registers paths with w.
func NewServer(cfg ServerConfig, w watcher.Watcher, log logger.Logger) *Server {
	return &Server{
		cfg:     cfg,
		watcher: w,
		logger:  log.With("component", "manager"),
		pid:     os.Getpid(),
		clients: make(map[uint64]*serverConn),
		owners:  make(map[string]map[uint64]bool),
	}
}

// Listen binds the manager address. It is called by Serve when needed;
// calling it first tells whether this process won the port.
func (s *Server) Listen() error {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	s.logger.Info("watch manager listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts clients until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	if err := s.watcher.Start(ctx); err != nil && !errors.Is(err, watcher.ErrAlreadyStarted) {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	s.lnMu.Lock()
	ln := s.listener
	s.lnMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.routeEvents(ctx)
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	defer func() {
		s.lnMu.Lock()
		s.listener = nil
		s.lnMu.Unlock()
		s.closeClients()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("watch manager stopped")
				return ctx.Err()
			}
			return fmt.Errorf("failed to accept: %w", err)
		}

		go s.handle(conn)
	}
}

func (s *Server) String() string {
	return "manager@" + s.cfg.Addr
}

// Registered returns the registered paths, sorted.
func (s *Server) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.registeredLocked()
}

func (s *Server) registeredLocked() []string {
	paths := make([]string, 0, len(s.owners))
	for path := range s.owners {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Status returns a snapshot of the manager state.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := ""
	if a := s.Addr(); a != nil {
		addr = a.String()
	}

	return Status{
		Addr:       addr,
		PID:        s.pid,
		Clients:    len(s.clients),
		Registered: s.registeredLocked(),
	}
}

func (s *Server) handle(conn net.Conn) {
	sc := &serverConn{conn: conn, enc: json.NewEncoder(conn)}

	s.mu.Lock()
	s.nextID++
	sc.id = s.nextID
	s.clients[sc.id] = sc
	metricClients.Set(float64(len(s.clients)))
	s.mu.Unlock()

	log := s.logger.With("client", sc.id, "remote", conn.RemoteAddr().String())
	log.Debug("client connected")

	defer func() {
		s.dropClient(sc.id)
		conn.Close()
		log.Debug("client disconnected")
	}()

	dec := json.NewDecoder(conn)
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			return
		}

		metricMessagesTotal.WithLabelValues(msg.Type).Inc()

		if err := s.dispatch(sc, msg, log); err != nil {
			log.Warn("failed to answer client", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(sc *serverConn, msg Message, log logger.Logger) error {
	ack := Message{Type: TypeAck, ID: msg.ID}

	switch msg.Type {
	case TypeWatch:
		if err := s.register(sc.id, msg.Paths); err != nil {
			ack.Error = err.Error()
			return sc.send(ack)
		}
		log.Info("paths watched", "pid", msg.PID, "paths", len(msg.Paths))
		if err := sc.send(ack); err != nil {
			return err
		}
		s.broadcast(Message{Type: TypeAdvisory, Task: TypeWatch, PID: msg.PID})
		return nil

	case TypeUnwatch:
		if err := s.unregister(msg.Paths); err != nil {
			ack.Error = err.Error()
			return sc.send(ack)
		}
		log.Info("paths unwatched", "pid", msg.PID, "paths", len(msg.Paths))
		if err := sc.send(ack); err != nil {
			return err
		}
		s.broadcast(Message{Type: TypeAdvisory, Task: TypeUnwatch, PID: msg.PID})
		return nil

	case TypeStatus:
		status := s.Status()
		ack.PID = status.PID
		ack.Paths = status.Registered
		return sc.send(ack)

	default:
		ack.Error = fmt.Sprintf("%v: %q", ErrUnknownType, msg.Type)
		return sc.send(ack)
	}
}

// register records id as an owner of paths. A rejected request leaves no
// unowned path with the watcher.
func (s *Server) register(id uint64, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.watcher.Add(paths...); err != nil {
		var orphans []string
		for _, path := range paths {
			if _, ok := s.owners[path]; !ok {
				orphans = append(orphans, path)
			}
		}
		if rmErr := s.watcher.Remove(orphans...); rmErr != nil {
			s.logger.Warn("failed to release rejected paths", "paths", len(orphans), "error", rmErr)
		}
		return err
	}

	for _, path := range paths {
		owners, ok := s.owners[path]
		if !ok {
			owners = make(map[uint64]bool)
			s.owners[path] = owners
		}
		owners[id] = true
	}
	metricRegisteredPaths.Set(float64(len(s.owners)))
	return nil
}

// unregister drops paths for every client. Unknown paths are ignored.
func (s *Server) unregister(paths []string) error {
	s.mu.Lock()
	for _, path := range paths {
		delete(s.owners, path)
	}
	metricRegisteredPaths.Set(float64(len(s.owners)))
	s.mu.Unlock()

	return s.watcher.Remove(paths...)
}

// dropClient forgets a disconnected client. Its registrations stay; their
// events fall back to every client.
func (s *Server) dropClient(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.clients, id)
	for _, owners := range s.owners {
		delete(owners, id)
	}
	metricClients.Set(float64(len(s.clients)))
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sc := range s.clients {
		sc.conn.Close()
	}
}

func (s *Server) routeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			s.route(Change{Kind: event.Kind(), Path: event.Path})

		case err, ok := <-s.watcher.Errors():
			if !ok {
				return
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// route sends a change to the owners of its path, or to every client when
// no owner is connected.
func (s *Server) route(change Change) {
	metricChangesTotal.WithLabelValues(change.Kind).Inc()

	s.mu.Lock()
	var targets []*serverConn
	for id := range s.owners[change.Path] {
		if sc, ok := s.clients[id]; ok {
			targets = append(targets, sc)
		}
	}
	if len(targets) == 0 {
		for _, sc := range s.clients {
			targets = append(targets, sc)
		}
	}
	s.mu.Unlock()

	msg := Message{Type: TypeChange, Kind: change.Kind, Path: change.Path}
	for _, sc := range targets {
		if err := sc.send(msg); err != nil {
			s.logger.Warn("failed to send change", "client", sc.id, "error", err)
			sc.conn.Close()
		}
	}
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	targets := make([]*serverConn, 0, len(s.clients))
	for _, sc := range s.clients {
		targets = append(targets, sc)
	}
	s.mu.Unlock()

	for _, sc := range targets {
		if err := sc.send(msg); err != nil {
			s.logger.Warn("failed to send advisory", "client", sc.id, "error", err)
			sc.conn.Close()
		}
	}
}
