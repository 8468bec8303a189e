package cast

import (
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"

	pb "github.com/zekimust-a11y/soundstream-sub000/cast/proto"
	"github.com/zekimust-a11y/soundstream-sub000/log"
)

const (
	// DefaultPort is the device control port of a Chromecast.
	DefaultPort = 8009

	DefaultSender   = "sender-0"
	DefaultReceiver = "receiver-0"

	NamespaceConnection = "urn:x-cast:com.google.cast.tp.connection"
	NamespaceReceiver   = "urn:x-cast:com.google.cast.receiver"

	dialerTimeout   = time.Second * 30
	dialerKeepAlive = time.Second * 30
)

var heartbeatInterval = time.Second * 5

var ErrNotConnected = errors.New("not connected to device")

// Conn is the device transport consumed by the receiver session. One
// Conn owns one TCP socket; logical channels share it.
type Conn interface {
	Connect(addr string, port int) error
	Connected() bool
	Disconnect() error
	NewChannel(sourceID, destinationID, namespace string) Chan
	// ReceiverChannel is the intrinsic channel to 'receiver-0' on the
	// receiver namespace.
	ReceiverChannel() Chan
	// OnDisconnect registers a handler invoked once when the socket
	// fails or is closed by the peer. It is not invoked on a local
	// Disconnect.
	OnDisconnect(fn func(err error))
}

type Connection struct {
	mu        sync.Mutex
	conn      *tls.Conn
	connected bool
	requestID int

	channels []*Channel
	connCh   *Channel
	recvCh   *Channel

	heartbeatStop chan struct{}
	onDisconnect  func(err error)
}

var _ Conn = (*Connection)(nil)

func NewConnection() *Connection {
	return &Connection{}
}

func (c *Connection) OnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect opens the socket, performs the CONNECT/GET_STATUS handshake
// and starts the heartbeat. It is a no-op when already connected.
func (c *Connection) Connect(addr string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	dialer := &net.Dialer{
		Timeout:   dialerTimeout,
		KeepAlive: dialerKeepAlive,
	}
	conn, err := tls.DialWithDialer(dialer, "tcp", fmt.Sprintf("%s:%d", addr, port), &tls.Config{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return errors.Wrapf(err, "unable to connect to device at '%s:%d'", addr, port)
	}

	c.conn = conn
	c.connected = true
	c.channels = nil
	c.connCh = c.newChannelLocked(DefaultSender, DefaultReceiver, NamespaceConnection)
	c.recvCh = c.newChannelLocked(DefaultSender, DefaultReceiver, NamespaceReceiver)

	go c.receiveLoop(conn)

	connect := ConnectHeader
	if err := c.writeLocked(&connect, DefaultSender, DefaultReceiver, NamespaceConnection); err != nil {
		c.closeLocked()
		return errors.Wrap(err, "unable to open device connection channel")
	}

	status := GetStatusHeader
	c.requestID++
	status.SetRequestId(c.requestID)
	if err := c.writeLocked(&status, DefaultSender, DefaultReceiver, NamespaceReceiver); err != nil {
		c.closeLocked()
		return errors.Wrap(err, "unable to request initial receiver status")
	}

	stop := make(chan struct{})
	c.heartbeatStop = stop
	go c.heartbeat(stop)

	return nil
}

// Disconnect politely closes the device connection. Safe to call
// multiple times and when no connection exists.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	// Best effort, the socket is going away regardless.
	polite := CloseHeader
	if err := c.writeLocked(&polite, DefaultSender, DefaultReceiver, NamespaceConnection); err != nil {
		log.WithField("package", "cast").WithError(err).Debug("unable to send CLOSE")
	}

	c.closeLocked()
	return nil
}

func (c *Connection) NewChannel(sourceID, destinationID, namespace string) Chan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newChannelLocked(sourceID, destinationID, namespace)
}

func (c *Connection) ReceiverChannel() Chan {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recvCh == nil {
		// Unbound channel, sends will fail with ErrNotConnected.
		return c.newChannelLocked(DefaultSender, DefaultReceiver, NamespaceReceiver)
	}
	return c.recvCh
}

func (c *Connection) newChannelLocked(sourceID, destinationID, namespace string) *Channel {
	ch := &Channel{
		conn:          c,
		sourceID:      sourceID,
		destinationID: destinationID,
		namespace:     namespace,
		listeners:     map[string][]MessageFunc{},
	}
	c.channels = append(c.channels, ch)
	return ch
}

func (c *Connection) nextRequestID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestID++
	return c.requestID
}

func (c *Connection) send(payload interface{}, sourceID, destinationID, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	return c.writeLocked(payload, sourceID, destinationID, namespace)
}

func (c *Connection) writeLocked(payload interface{}, sourceID, destinationID, namespace string) error {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "unable to marshal json payload")
	}
	payloadUtf8 := string(payloadJson)
	message := &pb.CastMessage{
		ProtocolVersion: pb.CastMessage_CASTV2_1_0.Enum(),
		SourceId:        &sourceID,
		DestinationId:   &destinationID,
		Namespace:       &namespace,
		PayloadType:     pb.CastMessage_STRING.Enum(),
		PayloadUtf8:     &payloadUtf8,
	}
	proto.SetDefaults(message)
	data, err := proto.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "unable to marshal proto payload")
	}

	log.WithField("package", "cast").Debugf("%s -> %s [%s]: %s", sourceID, destinationID, namespace, payloadJson)

	if err := binary.Write(c.conn, binary.BigEndian, uint32(len(data))); err != nil {
		return errors.Wrap(err, "unable to write frame length")
	}
	if _, err := c.conn.Write(data); err != nil {
		return errors.Wrap(err, "unable to write frame")
	}
	return nil
}

func (c *Connection) heartbeat(stop chan struct{}) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.mu.Lock()
			ch := c.connCh
			c.mu.Unlock()
			if ch == nil {
				return
			}
			ping := PingHeader
			if err := ch.Send(&ping); err != nil {
				// A failed ping is not fatal, the read side decides
				// when the connection is gone.
				log.WithField("package", "cast").WithError(err).Warn("heartbeat send failed")
			}
		}
	}
}

func (c *Connection) receiveLoop(conn *tls.Conn) {
	var cause error
	for {
		var length uint32
		if err := binary.Read(conn, binary.BigEndian, &length); err != nil {
			cause = err
			break
		}
		if length == 0 {
			continue
		}

		frame := make([]byte, length)
		if _, err := io.ReadFull(conn, frame); err != nil {
			cause = err
			break
		}

		message := &pb.CastMessage{}
		if err := proto.Unmarshal(frame, message); err != nil {
			log.WithField("package", "cast").WithError(err).Error("unable to unmarshal frame")
			continue
		}

		log.WithField("package", "cast").Debugf("%s <- %s [%s]: %s",
			message.GetDestinationId(), message.GetSourceId(), message.GetNamespace(), message.GetPayloadUtf8())

		msgType, err := jsonparser.GetString([]byte(message.GetPayloadUtf8()), "type")
		if err != nil {
			log.WithField("package", "cast").Debugf("frame without 'type' key: %s", message.GetPayloadUtf8())
			continue
		}

		if msgType == "PING" {
			pong := PongHeader
			if err := c.send(&pong, message.GetDestinationId(), message.GetSourceId(), message.GetNamespace()); err != nil {
				log.WithField("package", "cast").WithError(err).Warn("unable to respond to PING")
			}
			continue
		}

		c.dispatch(message, msgType)
	}
	c.teardown(cause)
}

func (c *Connection) dispatch(msg *pb.CastMessage, msgType string) {
	c.mu.Lock()
	channels := make([]*Channel, len(c.channels))
	copy(channels, c.channels)
	c.mu.Unlock()

	// Handlers run outside the connection lock so they may send or
	// open channels.
	for _, ch := range channels {
		ch.message(msg, msgType)
	}
}

// teardown reacts to a socket failure or peer close. It is a no-op
// after a local Disconnect.
func (c *Connection) teardown(cause error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.closeLocked()
	fn := c.onDisconnect
	c.mu.Unlock()

	log.WithField("package", "cast").WithError(cause).Warn("device connection lost")
	if fn != nil {
		fn(cause)
	}
}

func (c *Connection) closeLocked() {
	c.connected = false
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.channels = nil
	c.connCh = nil
	c.recvCh = nil
}
