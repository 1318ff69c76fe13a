package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsNamespace is the CloudWatch namespace for alert metrics.
const MetricsNamespace = "SellAppOrderflow"

// MetricEmitter records counters in CloudWatch.
type MetricEmitter struct {
	CloudWatch CloudWatchAPI
	Namespace  string
}

// NewMetricEmitter returns an emitter writing to namespace, or MetricsNamespace when empty.
func NewMetricEmitter(cw CloudWatchAPI, namespace string) *MetricEmitter {
	if namespace == "" {
		namespace = MetricsNamespace
	}
	return &MetricEmitter{CloudWatch: cw, Namespace: namespace}
}

// Count publishes a single count datapoint with the given dimensions.
func (e *MetricEmitter) Count(ctx context.Context, name string, value float64, at time.Time, dims map[string]string) error {
	datum := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Unit:       cwtypes.StandardUnitCount,
		Value:      &value,
		Timestamp:  &at,
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
			Name:  awsString(k),
			Value: awsString(v),
		})
	}

	_, err := e.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &e.Namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
