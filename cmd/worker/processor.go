package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/sellapp-orderflow/internal/aws"
	"github.com/imrishuroy/sellapp-orderflow/internal/logging"
)

// Processor turns operator alerts from SQS into log lines and CloudWatch counts.
type Processor struct {
	metrics MetricCounter
	log     *zap.Logger
	nowFunc func() time.Time
}

// NewProcessor creates a new worker processor with the metric sink injected.
func NewProcessor(metrics MetricCounter, log *zap.Logger) *Processor {
	return &Processor{metrics: metrics, log: logging.OrNop(log).Named("alerts"), nowFunc: time.Now}
}

// Handle processes an SQS batch. Messages whose metric could not be recorded
// are reported back as batch item failures so only they are redelivered.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	p.log.Debug("received SQS messages", zap.Int("count", len(ev.Records)))

	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Error("alert not recorded", zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg aws.AlertMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		// Redelivery cannot fix a bad body.
		p.log.Error("dropping malformed alert", zap.String("message_id", rec.MessageId), zap.String("body", rec.Body), zap.Error(err))
		return nil
	}
	if msg.Subject == "" {
		p.log.Error("dropping alert without subject", zap.String("message_id", rec.MessageId))
		return nil
	}

	at := msg.RaisedAt
	if at.IsZero() {
		at = p.nowFunc()
	}

	p.log.Error("operator alert",
		zap.String("subject", msg.Subject),
		zap.String("detail", msg.Body),
		zap.Time("raised_at", at),
		zap.Duration("age", p.nowFunc().Sub(at)))

	if err := p.metrics.Count(ctx, AlertMetric, 1, at, map[string]string{"Subject": msg.Subject}); err != nil {
		return fmt.Errorf("record alert metric: %w", err)
	}
	return nil
}
