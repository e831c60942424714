// Package relay implements the networked variant of the message bus: a
// websocket rendezvous server that forwards frames between registered
// endpoints over a lossy, delayed channel, and a client that exposes the
// connection through the bus interface.
package relay

import (
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tcms/bus"
)

// Default parameters of the relayed channel. The relay is lossier than the
// local transport.
const (
	DefaultAddr            = "localhost:8765"
	DefaultLossProbability = 0.1
	DefaultMinDelay        = 100 * time.Millisecond
	DefaultMaxDelay        = 500 * time.Millisecond
)

// A Server relays frames between registered endpoints. Each inbound frame
// survives a loss draw and is forwarded to the connection registered for its
// target after a uniformly sampled delay.
type Server struct {
	addr     string
	pLoss    float64
	minDelay time.Duration
	maxDelay time.Duration
	log      *logrus.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	rng     *rand.Rand
	clients map[string]*clientConn

	listener   net.Listener
	httpServer *http.Server
}

// clientConn serializes writes to one websocket connection.
type clientConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *clientConn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ServerBuilder can build relay servers.
type ServerBuilder struct {
	addr     string
	pLoss    float64
	minDelay time.Duration
	maxDelay time.Duration
	seed     int64
	log      *logrus.Logger
}

// MakeServerBuilder creates a ServerBuilder with the default address and
// channel parameters.
func MakeServerBuilder() ServerBuilder {
	return ServerBuilder{
		addr:     DefaultAddr,
		pLoss:    DefaultLossProbability,
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		seed:     time.Now().UnixNano(),
		log:      logrus.New(),
	}
}

// WithAddr sets the listen address.
func (b ServerBuilder) WithAddr(addr string) ServerBuilder {
	b.addr = addr
	return b
}

// WithLossProbability sets the probability that a frame is dropped.
func (b ServerBuilder) WithLossProbability(p float64) ServerBuilder {
	b.pLoss = p
	return b
}

// WithDelayBounds sets the bounds of the forwarding delay.
func (b ServerBuilder) WithDelayBounds(min, max time.Duration) ServerBuilder {
	b.minDelay = min
	b.maxDelay = max
	return b
}

// WithSeed sets the seed of the loss and delay draws.
func (b ServerBuilder) WithSeed(seed int64) ServerBuilder {
	b.seed = seed
	return b
}

// WithLogger sets the logger.
func (b ServerBuilder) WithLogger(log *logrus.Logger) ServerBuilder {
	b.log = log
	return b
}

// Build creates the server.
func (b ServerBuilder) Build() *Server {
	if b.maxDelay < b.minDelay {
		panic("max delay must not be smaller than min delay")
	}

	return &Server{
		addr:     b.addr,
		pLoss:    b.pLoss,
		minDelay: b.minDelay,
		maxDelay: b.maxDelay,
		log:      b.log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rng:     rand.New(rand.NewSource(b.seed)),
		clients: make(map[string]*clientConn),
	}
}

// Start begins listening and serving in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.listener = listener
	s.httpServer = &http.Server{Handler: http.HandlerFunc(s.handle)}

	s.log.WithField("addr", listener.Addr().String()).
		Info("relay server started")

	go func() {
		serveErr := s.httpServer.Serve(listener)
		if serveErr != nil && serveErr != http.ErrServerClosed {
			s.log.WithError(serveErr).Error("relay server stopped")
		}
	}()

	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown closes the listener and all client connections.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	for name, c := range s.clients {
		c.conn.Close()
		delete(s.clients, name)
	}
	s.mu.Unlock()

	return s.httpServer.Close()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("websocket upgrade failed")
		return
	}

	name, ok := s.register(conn)
	if !ok {
		conn.Close()
		return
	}

	s.readLoop(name, conn)
}

// register consumes the handshake frame. The first registration for a name
// stays authoritative; a duplicate is rejected by closing the connection.
func (s *Server) register(conn *websocket.Conn) (string, bool) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	frame, err := bus.DecodeFrame(data)
	if err != nil || !frame.IsRegistration() {
		s.log.Warn("connection did not open with a registration frame")
		return "", false
	}

	name := frame.Register

	s.mu.Lock()
	if _, taken := s.clients[name]; taken {
		s.mu.Unlock()
		s.log.WithField("node", name).Warn("duplicate registration rejected")

		return "", false
	}
	s.clients[name] = &clientConn{conn: conn}
	s.mu.Unlock()

	s.log.WithField("node", name).Info("node connected")

	return name, true
}

func (s *Server) readLoop(name string, conn *websocket.Conn) {
	defer s.deregister(name, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithField("node", name).WithError(err).
					Warn("read failed")
			}

			return
		}

		frame, err := bus.DecodeFrame(data)
		if err != nil {
			s.log.WithField("node", name).Warn("malformed frame dropped")
			continue
		}

		s.forward(frame, data)
	}
}

// forward applies the loss draw and schedules delivery to the target's
// connection after the sampled delay.
func (s *Server) forward(frame bus.Frame, data []byte) {
	s.mu.Lock()
	lost := s.rng.Float64() < s.pLoss
	delay := s.minDelay +
		time.Duration(s.rng.Float64()*float64(s.maxDelay-s.minDelay))
	s.mu.Unlock()

	if lost {
		s.log.WithFields(logrus.Fields{
			"sender": frame.Sender,
			"target": frame.Target,
		}).Debug("frame dropped")

		return
	}

	time.AfterFunc(delay, func() {
		s.mu.Lock()
		target := s.clients[frame.Target]
		s.mu.Unlock()

		if target == nil {
			s.log.WithField("target", frame.Target).
				Warn("target not connected, frame dropped")

			return
		}

		if err := target.write(data); err != nil {
			s.log.WithField("target", frame.Target).WithError(err).
				Warn("forward failed")
		}
	})
}

func (s *Server) deregister(name string, conn *websocket.Conn) {
	conn.Close()

	s.mu.Lock()
	if c, ok := s.clients[name]; ok && c.conn == conn {
		delete(s.clients, name)
	}
	s.mu.Unlock()

	s.log.WithField("node", name).Info("node disconnected")
}
