// Package sink hands finished reports to the configured writers and the alerter.
package sink

import (
	"errors"
	"fmt"

	"Go2TraceSpectra/internal/alerter"
	"Go2TraceSpectra/internal/config"
	coremodel "Go2TraceSpectra/internal/core/model"
	"Go2TraceSpectra/internal/factory"
	"Go2TraceSpectra/internal/metrics"
	"Go2TraceSpectra/internal/model"
	"Go2TraceSpectra/internal/notification"
	"Go2TraceSpectra/internal/report"

	log "github.com/sirupsen/logrus"
)

// Sink delivers reports. A writer failure does not stop the other writers.
type Sink struct {
	writers []model.Writer
	alerter *alerter.Alerter
	metrics *metrics.Metrics
}

// New creates a sink. alerter and m may be nil.
func New(writers []model.Writer, a *alerter.Alerter, m *metrics.Metrics) *Sink {
	return &Sink{writers: writers, alerter: a, metrics: m}
}

// FromConfig creates the configured writers and, when enabled, the alerter
// with an email notifier if SMTP is configured.
func FromConfig(cfg *config.Config, m *metrics.Metrics) (*Sink, error) {
	writers, err := factory.CreateWriters(cfg.Writers)
	if err != nil {
		return nil, err
	}

	var a *alerter.Alerter
	if cfg.Alerter.Enabled {
		if err := checkRuleGroups(cfg); err != nil {
			factory.CloseWriters(writers)
			return nil, err
		}
		var notifiers []model.Notifier
		if cfg.SMTP.Host != "" {
			notifiers = append(notifiers, notification.NewEmailNotifier(cfg.SMTP))
		}
		a, err = alerter.NewAlerter(&cfg.Alerter, m, notifiers...)
		if err != nil {
			factory.CloseWriters(writers)
			return nil, err
		}
		log.Printf("Alerter enabled with %d rule(s) and %d notifier(s).", len(cfg.Alerter.Rules), len(notifiers))
	}
	return New(writers, a, m), nil
}

// checkRuleGroups rejects alert rules naming a group that is not configured.
// A rule without a group applies to every group.
func checkRuleGroups(cfg *config.Config) error {
	groups := make(map[string]bool, len(cfg.Engine.EndpointGroups))
	for _, g := range cfg.Engine.EndpointGroups {
		groups[g.Name] = true
	}
	for _, rule := range cfg.Alerter.Rules {
		if rule.Group != "" && !groups[rule.Group] {
			return fmt.Errorf("%w: alert rule '%s' names unknown group '%s'", coremodel.ErrConfig, rule.Name, rule.Group)
		}
	}
	return nil
}

// Writers returns the names of the sink's writers.
func (s *Sink) Writers() []string {
	names := make([]string, len(s.writers))
	for i, w := range s.writers {
		names[i] = w.Name()
	}
	return names
}

// Handle writes the report with every writer and evaluates the alert rules.
// The returned error joins every writer failure.
func (s *Sink) Handle(rep *report.Report) error {
	var errs []error
	for _, w := range s.writers {
		err := w.Write(rep)
		s.metrics.ObserveWrite(w.Name(), err)
		if err != nil {
			log.WithField("writer", w.Name()).Errorf("Error writing report %s: %v", rep.ID, err)
			errs = append(errs, fmt.Errorf("writer %s: %w", w.Name(), err))
		}
	}
	if s.alerter != nil {
		s.alerter.Check(rep)
	}
	return errors.Join(errs...)
}

// Close releases the writers.
func (s *Sink) Close() {
	factory.CloseWriters(s.writers)
}
