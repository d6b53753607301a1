package probe

import (
	"Go2TraceSpectra/internal/config"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher is responsible for publishing raw trace lines to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish wraps one trace line and publishes it to the configured subject.
func (p *Publisher) Publish(line string) error {
	data, err := EncodeLine(line)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
