// Package notify publishes user change events to a message broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sandrolain/userkit/pkg/toolutil"
	"github.com/sandrolain/userkit/pkg/user"
)

type EventType string

const (
	Created EventType = "user.created"
	Updated EventType = "user.updated"
	Deleted EventType = "user.deleted"
)

// Event describes one successful storage operation. User is nil for deletes.
type Event struct {
	Type EventType     `json:"type" cbor:"type"`
	ID   string        `json:"id" cbor:"id"`
	User *user.Profile `json:"user,omitempty" cbor:"user,omitempty"`
	Time time.Time     `json:"time" cbor:"time"`
}

// NewEvent builds an event for u. The password is never included.
func NewEvent(typ EventType, u *user.User) Event {
	p := u.Profile()
	return Event{Type: typ, ID: p.ID, User: &p, Time: time.Now().UTC()}
}

// Encode serializes evt as JSON or CBOR depending on mime.
func Encode(evt Event, mime string) ([]byte, error) {
	switch mime {
	case toolutil.CTJSON, "":
		return json.Marshal(evt)
	case toolutil.CTCBOR:
		return cbor.Marshal(evt)
	}
	return nil, fmt.Errorf("unsupported event encoding %q", mime)
}

// Backend delivers an encoded event. Implementations must be safe for concurrent use.
type Backend interface {
	Send(ctx context.Context, key string, body []byte) error
	Close() error
}

// Notifier encodes events and hands them to a Backend.
type Notifier struct {
	backend Backend
	mime    string
}

func New(backend Backend, mime string) *Notifier {
	return &Notifier{backend: backend, mime: mime}
}

func (n *Notifier) Publish(ctx context.Context, evt Event) error {
	body, err := Encode(evt, n.mime)
	if err != nil {
		return err
	}
	return n.backend.Send(ctx, evt.ID, body)
}

func (n *Notifier) Close() error {
	return n.backend.Close()
}

// Kinds lists the supported broker names for Open.
var Kinds = []string{"redis", "nats", "kafka", "mqtt"}

// Open connects to the broker named by kind and returns a Notifier publishing
// to topic (channel, subject or topic depending on the broker).
func Open(kind, address, topic, mime string) (*Notifier, error) {
	if _, err := Encode(Event{}, mime); err != nil {
		return nil, err
	}
	var (
		b   Backend
		err error
	)
	switch kind {
	case "redis":
		b, err = NewRedis(address, topic)
	case "nats":
		b, err = NewNATS(address, topic)
	case "kafka":
		b, err = NewKafka(address, topic)
	case "mqtt":
		b, err = NewMQTT(address, topic)
	default:
		return nil, fmt.Errorf("unknown notifier %q (supported: %v)", kind, Kinds)
	}
	if err != nil {
		return nil, err
	}
	return New(b, mime), nil
}
