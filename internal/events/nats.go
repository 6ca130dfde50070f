package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/ukane-philemon/gradebook/internal/student"
)

const (
	// DefaultSubject is the subject student events are published on.
	DefaultSubject = "students.events"

	connectTimeout    = 10 * time.Second
	reconnectInterval = 5 * time.Second
	maxReconnects     = 10
)

// Check that *NATSPublisher implements student.Publisher.
var _ student.Publisher = (*NATSPublisher)(nil)

// conn is the subset of *nats.Conn used by NATSPublisher.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes student events as JSON on a NATS subject.
type NATSPublisher struct {
	nc      conn
	subject string
	log     logrus.FieldLogger
}

// NewNATSPublisher connects to natsURL. An empty subject means
// DefaultSubject.
func NewNATSPublisher(natsURL, subject string, log logrus.FieldLogger) (*NATSPublisher, error) {
	if natsURL == "" {
		return nil, errors.New("missing NATS URL")
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("gradebook"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectInterval),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats.Connect error: %w", err)
	}

	log.WithField("url", natsURL).Info("Connected to NATS")

	return newNATSPublisher(nc, subject, log), nil
}

func newNATSPublisher(nc conn, subject string, log logrus.FieldLogger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{
		nc:      nc,
		subject: subject,
		log:     log,
	}
}

// Publish implements student.Publisher.
func (p *NATSPublisher) Publish(event *student.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("json.Marshal error: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("nc.Publish error: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"subject": p.subject,
		"event":   event.Type,
	}).Debug("Published student event")

	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
