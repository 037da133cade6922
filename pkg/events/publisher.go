// Package events publishes fleet lifecycle events to NATS so downstream
// consumers (billing, notifications) can react to server state changes
// without polling the store.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/openfleet/openfleet/pkg/fleet"
	"github.com/openfleet/openfleet/pkg/telemetry"
)

// Config holds event publisher configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`

	// SubjectPrefix is prepended to every subject, default "fleet".
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Event is the JSON payload published for every lifecycle change.
type Event struct {
	Type      string    `json:"type"`
	RecordID  string    `json:"record_id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits lifecycle events. A nil Publisher is valid and drops
// everything, so callers never have to branch on whether eventing is on.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *telemetry.Logger
}

// NewPublisher connects to NATS. Returns (nil, nil) when cfg.Enabled is
// false.
func NewPublisher(cfg Config, logger *telemetry.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "fleet"
	}

	opts := []nats.Option{
		nats.Name("openfleet"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &Publisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// ServerCreated publishes a creation event for a new record.
func (p *Publisher) ServerCreated(rec *fleet.ServerRecord) {
	p.publish("server.created", Event{
		Type:      "server.created",
		RecordID:  rec.ID,
		OwnerID:   rec.OwnerID,
		Status:    string(rec.Status),
		Timestamp: time.Now().UTC(),
	})
}

// ServerStatusChanged publishes a status transition on a record.
func (p *Publisher) ServerStatusChanged(rec *fleet.ServerRecord, status fleet.Status, detail string) {
	p.publish("server.status", Event{
		Type:      "server.status",
		RecordID:  rec.ID,
		OwnerID:   rec.OwnerID,
		Status:    string(status),
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}

// ServerDeleted publishes a deletion event.
func (p *Publisher) ServerDeleted(rec *fleet.ServerRecord) {
	p.publish("server.deleted", Event{
		Type:      "server.deleted",
		RecordID:  rec.ID,
		OwnerID:   rec.OwnerID,
		Timestamp: time.Now().UTC(),
	})
}

// DriftCorrected publishes a reconciliation correction made by the sweeper.
func (p *Publisher) DriftCorrected(recordID string, status fleet.Status, detail string) {
	p.publish("drift.corrected", Event{
		Type:      "drift.corrected",
		RecordID:  recordID,
		Status:    string(status),
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publish(subject string, event Event) {
	if p == nil || p.nc == nil || p.nc.IsClosed() {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("failed to marshal event")
		return
	}

	full := p.prefix + "." + subject
	if err := p.nc.Publish(full, payload); err != nil {
		p.logger.WithError(err).WithField("subject", full).Warn("failed to publish event")
	}
}

// Close drains and closes the NATS connection. Safe on a nil Publisher.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	_ = p.nc.Drain()
	p.nc.Close()
}
