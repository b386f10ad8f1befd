// Package feed streams trade executions to kafka for downstream consumers
// (market data, analytics). Optional: only wired when brokers are
// configured.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vexlab/vexchange/pkg/api"
)

type TradeFeed struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func New(brokers []string, topic string, log *zap.SugaredLogger) *TradeFeed {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &TradeFeed{writer: writer, log: log}
}

// Publish forwards TRADE_EXECUTION envelopes to the topic and ignores
// everything else. Implements api.EventSink.
func (f *TradeFeed) Publish(ctx context.Context, env api.Outbound) error {
	if env.EventType != api.EventTradeExecution {
		return nil
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode trade event: %w", err)
	}

	if err := f.writer.WriteMessages(ctx, kafka.Message{Value: value}); err != nil {
		f.log.Errorw("trade_feed_publish_failed", "err", err)
		return fmt.Errorf("publish trade event: %w", err)
	}
	return nil
}

func (f *TradeFeed) Close() error { return f.writer.Close() }

var _ api.EventSink = (*TradeFeed)(nil)
