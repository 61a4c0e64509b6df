package executor

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/shaiso/jobpilot/internal/domain"
)

// MessageType — тип сообщения протокола executor'а.
type MessageType string

// Типы сообщений.
const (
	MsgPing    MessageType = "PING"
	MsgPong    MessageType = "PONG"
	MsgStart   MessageType = "START"
	MsgAck     MessageType = "ACK"
	MsgSuccess MessageType = "SUCCESS"
	MsgFailure MessageType = "FAILURE"
)

// maxMessageSize — максимальный размер одной строки протокола.
const maxMessageSize = 1 << 20

// Message — одна строка newline-delimited JSON.
//
// Ответы (PONG, ACK) повторяют Seq запроса. Ready и Received —
// указатели, чтобы отличать false от отсутствующего поля.
type Message struct {
	Seq      uint64      `json:"seq,omitempty"`
	Type     MessageType `json:"type"`
	Ready    *bool       `json:"ready,omitempty"`
	Received *bool       `json:"received,omitempty"`
	Job      *domain.Job `json:"job,omitempty"`
	JobID    string      `json:"job_id,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// IsOutcome возвращает true для SUCCESS и FAILURE.
func (m *Message) IsOutcome() bool {
	return m.Type == MsgSuccess || m.Type == MsgFailure
}

// Outcome преобразует SUCCESS/FAILURE в Outcome.
func (m *Message) Outcome() Outcome {
	return Outcome{
		JobID:   m.JobID,
		Success: m.Type == MsgSuccess,
		Error:   m.Error,
	}
}

// messageWriter сериализует запись сообщений в поток.
type messageWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newMessageWriter(w io.Writer) *messageWriter {
	return &messageWriter{enc: json.NewEncoder(w)}
}

// Write пишет сообщение одной строкой (json.Encoder добавляет '\n').
func (w *messageWriter) Write(msg Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

func boolPtr(v bool) *bool {
	return &v
}
