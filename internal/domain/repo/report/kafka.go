package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
)

const (
	headerRunID       = "runId"
	headerMessageType = "type"

	messageTypeResult  = "result"
	messageTypeSummary = "summary"
)

// ResultMessage is the value of a per subscription message.
type ResultMessage struct {
	RunID       string                    `json:"runId"`
	TenantID    string                    `json:"tenantId"`
	GeneratedAt time.Time                 `json:"generatedAt"`
	Result      entity.SubscriptionResult `json:"result"`
	Label       string                    `json:"label,omitempty"`
}

// SummaryMessage closes a run on the topic.
type SummaryMessage struct {
	RunID       string         `json:"runId"`
	TenantID    string         `json:"tenantId"`
	StartedAt   time.Time      `json:"startedAt"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Summary     entity.Summary `json:"summary"`
}

// KafkaWriter publishes one message per subscription, keyed by subscription id
// so that a subscription history stays in one partition, then a summary
// message keyed by run id.
type KafkaWriter struct {
	producer sarama.SyncProducer
	topic    string
}

var _ repo.ReportWriter = KafkaWriter{}

func NewKafkaWriter(producer sarama.SyncProducer, topic string) KafkaWriter {
	return KafkaWriter{
		producer: producer,
		topic:    topic,
	}
}

func (w KafkaWriter) target() string {
	return "kafka://" + w.topic
}

func (w KafkaWriter) WriteReport(ctx context.Context, report entity.Report) error {
	if report.RunID == "" {
		return pipeline.NewErrProcessingError(ErrMissingRunID, pipeline.ValidateCategory, w.target())
	}

	messages, err := w.buildMessages(report)
	if err != nil {
		return pipeline.NewErrProcessingError(err, pipeline.MarshalCategory, w.target())
	}

	// SendMessages does not take a context.
	if err := ctx.Err(); err != nil {
		return pipeline.NewErrProcessingError(err, pipeline.WriteCategory, w.target())
	}

	err = w.producer.SendMessages(messages)
	if err != nil {
		err = fmt.Errorf("failed to send messages: %w", err)

		if isKafkaRetryable(err) {
			return pipeline.NewRetryableErrProcessingError(err, pipeline.WriteCategory, w.target())
		}

		return pipeline.NewErrProcessingError(err, pipeline.WriteCategory, w.target())
	}

	return nil
}

func (w KafkaWriter) buildMessages(report entity.Report) ([]*sarama.ProducerMessage, error) {
	ret := make([]*sarama.ProducerMessage, 0, len(report.Results)+1)

	for _, result := range report.Results {
		value := ResultMessage{
			RunID:       report.RunID,
			TenantID:    report.TenantID,
			GeneratedAt: report.GeneratedAt,
			Result:      result,
		}

		if report.Summary.Labels != nil {
			value.Label = report.Summary.Labels.Subscriptions[result.SubscriptionID()]
		}

		msg, err := w.message(string(result.SubscriptionID()), messageTypeResult, report.RunID, value)
		if err != nil {
			return nil, err
		}

		ret = append(ret, msg)
	}

	summary := SummaryMessage{
		RunID:       report.RunID,
		TenantID:    report.TenantID,
		StartedAt:   report.StartedAt,
		GeneratedAt: report.GeneratedAt,
		Summary:     report.Summary,
	}

	msg, err := w.message(report.RunID, messageTypeSummary, report.RunID, summary)
	if err != nil {
		return nil, err
	}

	return append(ret, msg), nil
}

func (w KafkaWriter) message(key string, messageType string, runID string, value any) (*sarama.ProducerMessage, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", messageType, err)
	}

	return &sarama.ProducerMessage{
		Topic: w.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerRunID), Value: []byte(runID)},
			{Key: []byte(headerMessageType), Value: []byte(messageType)},
		},
	}, nil
}

var nonRetryableKafkaErrors = []error{
	sarama.ErrMessageSizeTooLarge,
	sarama.ErrInvalidMessage,
	sarama.ErrUnknownTopicOrPartition,
	sarama.ErrTopicAuthorizationFailed,
	sarama.ErrClosedClient,
}

// isKafkaRetryable treats a batch as retryable unless one of its errors can
// not be fixed by sending again.
func isKafkaRetryable(err error) bool {
	var producerErrs sarama.ProducerErrors
	if !errors.As(err, &producerErrs) {
		return !isOneOf(err, nonRetryableKafkaErrors)
	}

	for _, e := range producerErrs {
		if isOneOf(e.Err, nonRetryableKafkaErrors) {
			return false
		}
	}

	return true
}

func isOneOf(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}

	return false
}
