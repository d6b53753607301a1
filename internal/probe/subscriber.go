package probe

import (
	"Go2TraceSpectra/internal/config"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// LineHandler processes one received trace line.
type LineHandler func(line string)

// Subscriber is responsible for subscribing to a NATS subject and processing messages.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.ProbeConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the subject and hands every decoded line to handler.
// NATS delivers the messages of one subscription sequentially, so the
// handler sees lines in publication order.
func (s *Subscriber) Start(handler LineHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		line, err := DecodeLine(msg.Data)
		if err != nil {
			log.Printf("Error unmarshalling protobuf: %v", err)
			return
		}
		handler(line)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for messages...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
