package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runEvent struct {
	Type  string `json:"type"`
	RunID string `json:"runId"`
}

func (e runEvent) EventType() string { return e.Type }

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

func TestMessageCarriesKeyAndEventType(t *testing.T) {
	msg, err := message("payroll-events", "run-1", runEvent{Type: "payroll.run.locked", RunID: "run-1"})
	require.NoError(t, err)

	assert.Equal(t, "payroll-events", msg.Topic)
	assert.Equal(t, []byte("run-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("payroll.run.locked"), msg.Headers[0].Value)

	var body runEvent
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "run-1", body.RunID)
}

func TestMessageWithoutEventTypeHasNoHeaders(t *testing.T) {
	msg, err := message("payroll-events", "run-1", map[string]string{"runId": "run-1"})
	require.NoError(t, err)
	assert.Empty(t, msg.Headers)
}

func TestMessageRejectsUnencodablePayload(t *testing.T) {
	_, err := message("payroll-events", "run-1", make(chan int))
	assert.ErrorContains(t, err, "marshal event")
}

func TestKafkaPublisherWritesMessage(t *testing.T) {
	writer := &recordingWriter{}
	publisher := &KafkaPublisher{writer: writer}

	require.NoError(t, publisher.Publish(context.Background(), "payroll-events", "run-7", runEvent{Type: "payroll.run.created", RunID: "run-7"}))
	require.Len(t, writer.messages, 1)
	assert.Equal(t, []byte("run-7"), writer.messages[0].Key)

	writer.err = errors.New("broker unavailable")
	assert.EqualError(t, publisher.Publish(context.Background(), "payroll-events", "run-7", runEvent{Type: "payroll.run.locked"}), "broker unavailable")
}
