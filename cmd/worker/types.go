package main

import (
	"context"
	"time"
)

// AlertMetric is the CloudWatch metric counting operator alerts.
const AlertMetric = "VerificationAlerts"

// MetricCounter records a count datapoint. *aws.MetricEmitter satisfies it.
type MetricCounter interface {
	Count(ctx context.Context, name string, value float64, at time.Time, dims map[string]string) error
}
