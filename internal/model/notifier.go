package model

// Notifier delivers alert messages to an external channel.
type Notifier interface {
	Name() string
	Send(subject, htmlBody string) error
}
