package relay

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/tcms/bus"
)

// Reconnect backoff bounds of the client.
const (
	reconnectMinBackoff = 250 * time.Millisecond
	reconnectMaxBackoff = 5 * time.Second
)

// A Client is a relay-backed bus. It registers under one channel name, wraps
// outbound messages in frames addressed to that channel with the recipient
// in real_target, and drains frames the relay forwards back.
//
// Command messages are also echoed into the local inbox immediately, so an
// actuator sharing the process with the sender reacts without waiting on the
// channel. The echo means commands can arrive twice; actuators treat
// duplicates as no-ops.
type Client struct {
	channel bus.NodeID
	url     string
	log     *logrus.Logger

	// Senders whose messages are periodic reports rather than commands.
	// Reports are not locally echoed.
	reportSenders map[bus.NodeID]bool

	mu      sync.Mutex
	conn    *websocket.Conn
	inbox   []bus.Envelope
	closed  bool
	backoff time.Duration
	rng     *rand.Rand

	// Serializes frame writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// ClientBuilder can build relay clients.
type ClientBuilder struct {
	channel       bus.NodeID
	url           string
	log           *logrus.Logger
	reportSenders []bus.NodeID
}

// MakeClientBuilder creates a ClientBuilder pointing at the default relay
// address.
func MakeClientBuilder() ClientBuilder {
	return ClientBuilder{
		url: "ws://" + DefaultAddr,
		log: logrus.New(),
	}
}

// WithChannel sets the channel name the client registers under.
func (b ClientBuilder) WithChannel(channel bus.NodeID) ClientBuilder {
	b.channel = channel
	return b
}

// WithURL sets the relay websocket URL.
func (b ClientBuilder) WithURL(url string) ClientBuilder {
	b.url = url
	return b
}

// WithLogger sets the logger.
func (b ClientBuilder) WithLogger(log *logrus.Logger) ClientBuilder {
	b.log = log
	return b
}

// WithReportSenders marks senders whose messages must not be locally
// echoed.
func (b ClientBuilder) WithReportSenders(ids ...bus.NodeID) ClientBuilder {
	b.reportSenders = append(b.reportSenders, ids...)
	return b
}

// Build creates the client and starts its connection loop.
func (b ClientBuilder) Build() *Client {
	if b.channel == "" {
		panic("relay client requires a channel name")
	}

	c := &Client{
		channel:       b.channel,
		url:           b.url,
		log:           b.log,
		reportSenders: make(map[bus.NodeID]bool),
		backoff:       reconnectMinBackoff,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, id := range b.reportSenders {
		c.reportSenders[id] = true
	}

	go c.run()

	return c
}

// Send wraps the payload in a frame addressed to the client's channel and
// writes it to the relay. A message sent while disconnected is lost, which
// is indistinguishable from channel loss to the recipient.
func (c *Client) Send(sender, recipient bus.NodeID, payload string) {
	frame := bus.Frame{
		Sender:     string(sender),
		Target:     string(c.channel),
		RealTarget: string(recipient),
		Message:    payload,
	}

	if !c.reportSenders[sender] {
		c.echoLocally(frame)
	}

	data, err := bus.EncodeFrame(frame)
	if err != nil {
		c.log.WithError(err).Error("frame encoding failed")
		return
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.log.WithField("sender", sender).Debug("not connected, message not sent")
		return
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		c.log.WithError(err).Debug("write failed, message not sent")
		c.dropConn(conn)
	}
}

// Drain removes and returns all received envelopes.
func (c *Client) Drain() []bus.Envelope {
	c.mu.Lock()
	out := c.inbox
	c.inbox = nil
	c.mu.Unlock()

	return out
}

// Close stops the connection loop and closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (c *Client) echoLocally(frame bus.Frame) {
	env := frame.Envelope()

	c.mu.Lock()
	c.inbox = append(c.inbox, env)
	c.mu.Unlock()
}

// run owns the socket: it connects, registers, reads frames into the inbox,
// and reconnects with backoff on failure.
func (c *Client) run() {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.connect()
		if err != nil {
			c.log.WithError(err).Debug("relay connection failed")
			c.sleepBackoff()
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.backoff = reconnectMinBackoff
		c.mu.Unlock()

		c.log.WithField("channel", c.channel).Info("connected to relay")
		c.readLoop(conn)
	}
}

func (c *Client) connect() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return nil, err
	}

	data, err := bus.EncodeFrame(bus.RegistrationFrame(c.channel))
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.dropConn(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.log.WithError(err).Debug("relay read failed")
			return
		}

		frame, err := bus.DecodeFrame(data)
		if err != nil || frame.IsRegistration() {
			continue
		}

		c.mu.Lock()
		c.inbox = append(c.inbox, frame.Envelope())
		c.mu.Unlock()
	}
}

func (c *Client) dropConn(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) sleepBackoff() {
	c.mu.Lock()
	backoff := c.backoff
	jitter := time.Duration(c.rng.Int63n(int64(backoff) / 2))
	c.backoff *= 2
	if c.backoff > reconnectMaxBackoff {
		c.backoff = reconnectMaxBackoff
	}
	c.mu.Unlock()

	time.Sleep(backoff + jitter)
}
