// Package queue moves indexer output through Kafka so that parsing and
// embedding can run in separate processes.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"commodity-rag/internal/domain"
)

const indexHeader = "index"

// ErrInvalidMessage marks messages that can never be written, whatever the
// state of the index.
var ErrInvalidMessage = errors.New("invalid message")

// Message is the JSON payload of one queued document.
type Message struct {
	Index    string          `json:"index"`
	Document domain.Document `json:"document"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher is a DocumentSink that enqueues documents for a named index.
type Publisher struct {
	writer messageWriter
	index  string
}

func NewPublisher(w messageWriter, index string) *Publisher {
	return &Publisher{writer: w, index: index}
}

// NewWriter builds the kafka writer used by Publisher.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}
}

// NewReader builds a consumer-group reader with auto-commit disabled, for use
// with Consume.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

func (p *Publisher) Write(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(docs))
	for _, d := range docs {
		value, err := json.Marshal(Message{Index: p.index, Document: d})
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", d.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(d.ID),
			Value:   value,
			Headers: []kafka.Header{{Key: indexHeader, Value: []byte(p.index)}},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish to kafka: %w", err)
	}
	return nil
}

// Handler routes decoded messages to the sink registered for their index.
type Handler struct {
	sinks map[string]domain.DocumentSink
	log   *slog.Logger
}

func NewHandler(sinks map[string]domain.DocumentSink, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{sinks: sinks, log: log}
}

// Process decodes and validates msg and writes its document.
func (h *Handler) Process(ctx context.Context, msg kafka.Message) error {
	var payload Message
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrInvalidMessage, err)
	}
	if payload.Index == "" {
		payload.Index = headerValue(msg.Headers, indexHeader)
	}
	sink, ok := h.sinks[payload.Index]
	if !ok {
		return fmt.Errorf("%w: unknown index %q", ErrInvalidMessage, payload.Index)
	}
	doc := payload.Document
	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("%w: empty document content", ErrInvalidMessage)
	}
	if doc.ID == "" {
		doc = domain.NewDocument(doc.Content, doc.Metadata)
	}
	if err := sink.Write(ctx, []domain.Document{doc}); err != nil {
		return err
	}
	h.log.Info("indexed document", slog.String("index", payload.Index), slog.String("id", doc.ID))
	return nil
}

func headerValue(headers []kafka.Header, key string) string {
	for _, hd := range headers {
		if hd.Key == key {
			return string(hd.Value)
		}
	}
	return ""
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consume fetches until ctx is cancelled. A message is committed only after
// it was written; a message that fails validation is logged and committed so
// it does not block the partition, while a failed write is left uncommitted
// and the loop stops so the worker restarts from it.
func Consume(ctx context.Context, r messageReader, h *Handler) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				h.log.Info("consumer stopping")
				return nil
			}
			h.log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := h.Process(ctx, msg); err != nil {
			if errors.Is(err, ErrInvalidMessage) {
				h.log.Warn("dropping invalid message",
					slog.Any("err", err),
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			} else {
				return fmt.Errorf("write message at offset %d: %w", msg.Offset, err)
			}
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			h.log.Error("commit message", slog.Any("err", err))
		}
	}
}
