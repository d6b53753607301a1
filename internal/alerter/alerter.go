package alerter

import (
	"fmt"
	"html"
	"strings"

	"Go2TraceSpectra/internal/config"
	"Go2TraceSpectra/internal/metrics"
	"Go2TraceSpectra/internal/model"
	"Go2TraceSpectra/internal/report"

	log "github.com/sirupsen/logrus"
)

var metricNames = map[string]bool{"packets": true, "bytes": true, "peers": true, "syns": true, "share": true}

// Alert is one rule that fired on a report.
type Alert struct {
	Rule     config.AlerterRule
	Group    string
	Value    float64
	ReportID string
}

// Message renders the alert as one line of text.
func (a Alert) Message() string {
	return fmt.Sprintf("[%s] group %s: %s = %g %s %g",
		a.Rule.Name, a.Group, a.Rule.Metric, a.Value, a.Rule.Operator, a.Rule.Threshold)
}

// Alerter evaluates reports against threshold rules and sends one
// consolidated notification per report with triggered rules.
type Alerter struct {
	rules     []config.AlerterRule
	notifiers []model.Notifier
	metrics   *metrics.Metrics
}

// NewAlerter validates the rules and creates an alerter.
func NewAlerter(cfg *config.AlerterConfig, m *metrics.Metrics, notifiers ...model.Notifier) (*Alerter, error) {
	for _, rule := range cfg.Rules {
		if !metricNames[rule.Metric] {
			return nil, fmt.Errorf("alert rule '%s': unknown metric '%s'", rule.Name, rule.Metric)
		}
		if _, err := compare(rule.Operator, 0, 0); err != nil {
			return nil, fmt.Errorf("alert rule '%s': %w", rule.Name, err)
		}
	}
	return &Alerter{rules: cfg.Rules, notifiers: notifiers, metrics: m}, nil
}

func compare(op string, value, threshold float64) (bool, error) {
	switch op {
	case ">":
		return value > threshold, nil
	case "<":
		return value < threshold, nil
	case "=", "==":
		return value == threshold, nil
	case ">=":
		return value >= threshold, nil
	case "<=":
		return value <= threshold, nil
	}
	return false, fmt.Errorf("unknown operator '%s'", op)
}

func metricValue(g report.GroupReport, metric string) float64 {
	switch metric {
	case "packets":
		return float64(g.PacketCount)
	case "bytes":
		return float64(g.ByteCount)
	case "peers":
		return float64(len(g.UniquePeers))
	case "syns":
		return float64(g.SynCount)
	case "share":
		return g.SharePercent
	}
	return 0
}

// Evaluate returns the rules the report triggers. A rule without a group
// applies to every group.
func (a *Alerter) Evaluate(rep *report.Report) []Alert {
	var alerts []Alert
	for _, rule := range a.rules {
		for _, g := range rep.Groups {
			if rule.Group != "" && rule.Group != g.Name {
				continue
			}
			value := metricValue(g, rule.Metric)
			if fired, _ := compare(rule.Operator, value, rule.Threshold); fired {
				alerts = append(alerts, Alert{Rule: rule, Group: g.Name, Value: value, ReportID: rep.ID})
			}
		}
	}
	return alerts
}

// Check evaluates the report and notifies about triggered rules.
func (a *Alerter) Check(rep *report.Report) []Alert {
	alerts := a.Evaluate(rep)
	if len(alerts) == 0 {
		return nil
	}
	log.Printf("Alerter evaluation completed. %d alert(s) triggered.", len(alerts))

	var items []string
	for _, al := range alerts {
		a.metrics.ObserveAlert(al.Rule.Name)
		log.WithFields(log.Fields{"rule": al.Rule.Name, "group": al.Group}).Warn(al.Message())
		items = append(items, "<li>"+html.EscapeString(al.Message())+"</li>")
	}

	body := "<h1>Go2TraceSpectra Alert Summary</h1>" +
		fmt.Sprintf("<p>Report %s from %s (verdict: %s) triggered the following alerts:</p>",
			html.EscapeString(rep.ID), html.EscapeString(rep.Source), html.EscapeString(string(rep.Verdict))) +
		"<ul>" + strings.Join(items, "") + "</ul>"
	subject := fmt.Sprintf("Go2TraceSpectra Alert Summary (%d Triggered)", len(alerts))

	for _, n := range a.notifiers {
		if err := n.Send(subject, body); err != nil {
			log.Printf("ERROR: Failed to send consolidated alert notification via %s: %v", n.Name(), err)
		} else {
			log.Printf("INFO: Consolidated alert notification sent via %s.", n.Name())
		}
	}
	return alerts
}
