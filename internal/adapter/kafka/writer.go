package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/censoc-variation-service/internal/config"
	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes period variations to a Kafka topic.
// It implements pipeline.ReportSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// variationMessage is the wire form of one report row.
type variationMessage struct {
	ReportID    string    `json:"report_id"`
	Strata      string    `json:"strata"`
	LeapRule    string    `json:"leap_rule"`
	GeneratedAt time.Time `json:"generated_at"`
	TimeIndex   float64   `json:"time_index"`
	domain.PeriodVariation
}

// PublishReport writes one message per period in a single WriteMessages call.
func (w *Writer) PublishReport(ctx context.Context, report domain.VariationReport) error {
	if len(report.Variations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(report.Variations))
	for i := range report.Variations {
		msg, err := serializeToMessage(report, report.Variations[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write variations: %w", err)
	}
	w.logger.Debug("variations published", "report_id", report.ID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// messageKey identifies one category-period row, e.g. "sex=male|1995-02".
func messageKey(v domain.PeriodVariation) string {
	return fmt.Sprintf("%s|%04d-%02d", v.Category.Key(), v.Year, v.Month)
}

// serializeToMessage marshals one report row into a Kafka message.
func serializeToMessage(report domain.VariationReport, v domain.PeriodVariation) (kafkago.Message, error) {
	data, err := json.Marshal(variationMessage{
		ReportID:        report.ID,
		Strata:          string(report.Strata),
		LeapRule:        report.LeapRule,
		GeneratedAt:     report.GeneratedAt,
		TimeIndex:       v.TimeIndex(),
		PeriodVariation: v,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize period variation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(messageKey(v)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "report_id", Value: []byte(report.ID)},
			{Key: "strata", Value: []byte(report.Strata)},
			{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
