package cast

import (
	"sync"

	pb "github.com/zekimust-a11y/soundstream-sub000/cast/proto"
)

// MessageFunc receives the raw JSON payload of an inbound frame.
type MessageFunc func(data []byte)

// Chan is a logical (sourceId, destinationId, namespace) sub-stream
// multiplexed over one device connection.
type Chan interface {
	Send(payload interface{}) error
	// SendWithID assigns the next request id to the payload before
	// sending and returns it.
	SendWithID(payload Payload) (int, error)
	// OnMessage registers a handler for inbound frames of the given
	// message type. The type "*" matches every frame on the channel.
	OnMessage(msgType string, fn MessageFunc)
}

type Channel struct {
	conn *Connection

	sourceID      string
	destinationID string
	namespace     string

	mu        sync.Mutex
	listeners map[string][]MessageFunc
}

var _ Chan = (*Channel)(nil)

func (ch *Channel) Send(payload interface{}) error {
	return ch.conn.send(payload, ch.sourceID, ch.destinationID, ch.namespace)
}

func (ch *Channel) SendWithID(payload Payload) (int, error) {
	id := ch.conn.nextRequestID()
	payload.SetRequestId(id)
	return id, ch.Send(payload)
}

func (ch *Channel) OnMessage(msgType string, fn MessageFunc) {
	ch.mu.Lock()
	ch.listeners[msgType] = append(ch.listeners[msgType], fn)
	ch.mu.Unlock()
}

// message delivers an inbound frame if it is addressed to this channel.
func (ch *Channel) message(msg *pb.CastMessage, msgType string) {
	if msg.GetDestinationId() != "*" &&
		(msg.GetSourceId() != ch.destinationID ||
			msg.GetDestinationId() != ch.sourceID ||
			msg.GetNamespace() != ch.namespace) {
		return
	}

	ch.mu.Lock()
	fns := make([]MessageFunc, 0, len(ch.listeners[msgType])+len(ch.listeners["*"]))
	fns = append(fns, ch.listeners[msgType]...)
	fns = append(fns, ch.listeners["*"]...)
	ch.mu.Unlock()

	for _, fn := range fns {
		fn([]byte(msg.GetPayloadUtf8()))
	}
}
