// Package eventbus publishes stage change integration events for other services
// (notifications, reporting). Publishing happens after the database commit and is
// best effort: a broker outage never fails a stage change.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RoutingStageApplied           = "case.stage.applied"
	RoutingStageApprovalRequested = "case.stage.approval_requested"
	RoutingStageApprovalResolved  = "case.stage.approval_resolved"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// StageEvent is the body of every case.stage.* message.
type StageEvent struct {
	EventID     string     `json:"event_id"`
	CaseID      string     `json:"case_id"`
	FromStageID string     `json:"from_stage_id,omitempty"`
	ToStageID   string     `json:"to_stage_id"`
	RequestID   string     `json:"request_id,omitempty"`
	Resolution  string     `json:"resolution,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	EffectiveAt *time.Time `json:"effective_at,omitempty"`
	Backdated   bool       `json:"backdated"`
	Regression  bool       `json:"regression"`
	Actor       string     `json:"actor"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Emit stamps an event id if missing, encodes ev and publishes it. Failures are logged
// and swallowed.
func Emit(ctx context.Context, p Publisher, logger *zap.Logger, routingKey string, ev StageEvent) {
	if p == nil {
		return
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		logger.Error("encode stage event", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}
	if err := p.Publish(ctx, routingKey, body); err != nil {
		logger.Warn("publish stage event",
			zap.String("routing_key", routingKey),
			zap.String("case_id", ev.CaseID),
			zap.Error(err),
		)
	}
}

// NoopPublisher is used when AMQP_URL is unset.
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.logger.Debug("noop publish", zap.String("routing_key", routingKey), zap.Int("size", len(payload)))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
