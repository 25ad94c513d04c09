// Package events carries user-facing failure reports from the quiz core to
// whichever rendering boundary is listening.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ReportTopic is the topic every report is published on.
const ReportTopic = "quiz.reports"

const sessionMetadataKey = "session_id"

// ReportKind classifies a report.
type ReportKind string

const (
	KindLoadFailed ReportKind = "load_failed"
)

// Report is a failure the player has to be told about.
type Report struct {
	SessionID string     `json:"sessionId"`
	Kind      ReportKind `json:"kind"`
	Message   string     `json:"message"`
	At        time.Time  `json:"at"`
}

// Reporter publishes reports.
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// Bus is an in-process pub/sub for reports.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
	now    func() time.Time
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NewSlogLogger(logger)),
		logger: logger,
		now:    time.Now,
	}
}

// Report publishes r to every subscriber of r.SessionID.
func (b *Bus) Report(_ context.Context, r Report) error {
	if r.At.IsZero() {
		r.At = b.now()
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(sessionMetadataKey, r.SessionID)
	msg.Metadata.Set("kind", string(r.Kind))

	if err := b.pubsub.Publish(ReportTopic, msg); err != nil {
		b.logger.Error("publish report failed", "session_id", r.SessionID, "kind", r.Kind, "error", err)
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

// Subscribe returns the reports addressed to sessionID. The channel closes when
// ctx is done.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (<-chan Report, error) {
	messages, err := b.pubsub.Subscribe(ctx, ReportTopic)
	if err != nil {
		return nil, fmt.Errorf("subscribe reports: %w", err)
	}

	out := make(chan Report, 4)
	go func() {
		defer close(out)
		for msg := range messages {
			if msg.Metadata.Get(sessionMetadataKey) != sessionID {
				msg.Ack()
				continue
			}
			var r Report
			if err := json.Unmarshal(msg.Payload, &r); err != nil {
				b.logger.Warn("dropping malformed report", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
