package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shaiso/jobpilot/internal/domain"
)

// streamHandle — Handle поверх пары потоков с протоколом NDJSON.
//
// Запросы (PING, START) коррелируются с ответами по Seq.
// Используется и для дочерних процессов, и для in-process executor'ов.
type streamHandle struct {
	id     string
	writer *messageWriter
	close  func() error
	logger *slog.Logger

	seq     atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan Message

	outcomes chan Outcome
	done     chan struct{}
	readDone chan struct{}

	doneOnce    sync.Once
	destroyOnce sync.Once
}

func newStreamHandle(id string, r io.Reader, w io.Writer, closeFn func() error, logger *slog.Logger) *streamHandle {
	h := &streamHandle{
		id:       id,
		writer:   newMessageWriter(w),
		close:    closeFn,
		logger:   logger,
		pending:  make(map[uint64]chan Message),
		outcomes: make(chan Outcome, 4),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go h.readLoop(r)
	return h
}

func (h *streamHandle) ID() string { return h.id }
func (h *streamHandle) Outcomes() <-chan Outcome { return h.outcomes }
func (h *streamHandle) Done() <-chan struct{} { return h.done }
func (h *streamHandle) readFinished() <-chan struct{} { return h.readDone }

// Ping отправляет PING и ждёт PONG.
func (h *streamHandle) Ping(ctx context.Context) (bool, error) {
	reply, err := h.request(ctx, Message{Type: MsgPing}, MsgPong)
	if err != nil {
		return false, err
	}
	if reply.Ready == nil {
		return false, fmt.Errorf("%w: PONG without ready", ErrMalformedReply)
	}
	return *reply.Ready, nil
}

// Start отправляет START и ждёт ACK.
func (h *streamHandle) Start(ctx context.Context, job *domain.Job) (bool, error) {
	reply, err := h.request(ctx, Message{Type: MsgStart, Job: job}, MsgAck)
	if err != nil {
		return false, err
	}
	if reply.Received == nil {
		return false, fmt.Errorf("%w: ACK without received", ErrMalformedReply)
	}
	return *reply.Received, nil
}

// Destroy закрывает потоки и освобождает ресурсы executor'а.
func (h *streamHandle) Destroy() error {
	var err error
	h.destroyOnce.Do(func() {
		if h.close != nil {
			err = h.close()
		}
		h.markDone()
	})
	return err
}

func (h *streamHandle) request(ctx context.Context, msg Message, expect MessageType) (Message, error) {
	select {
	case <-h.done:
		return Message{}, ErrClosed
	default:
	}

	msg.Seq = h.seq.Add(1)
	reply := make(chan Message, 1)

	h.mu.Lock()
	h.pending[msg.Seq] = reply
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, msg.Seq)
		h.mu.Unlock()
	}()

	if err := h.writer.Write(msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrClosed, err)
	}

	select {
	case r := <-reply:
		if r.Type != expect {
			return Message{}, fmt.Errorf("%w: expected %s, got %s", ErrMalformedReply, expect, r.Type)
		}
		return r, nil
	case <-h.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// readLoop читает сообщения executor'а до EOF.
// Результат кладётся в outcomes до закрытия done.
func (h *streamHandle) readLoop(r io.Reader) {
	defer close(h.readDone)
	defer h.markDone()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			h.logger.Warn("malformed executor message", "executor_id", h.id, "error", err)
			continue
		}

		switch {
		case msg.IsOutcome():
			select {
			case h.outcomes <- msg.Outcome():
			default:
				h.logger.Warn("dropping extra executor outcome", "executor_id", h.id, "type", msg.Type)
			}
		case msg.Type == MsgPong || msg.Type == MsgAck:
			h.mu.Lock()
			reply, ok := h.pending[msg.Seq]
			h.mu.Unlock()
			if !ok {
				h.logger.Debug("unsolicited executor reply", "executor_id", h.id, "type", msg.Type, "seq", msg.Seq)
				continue
			}
			select {
			case reply <- msg:
			default:
			}
		default:
			h.logger.Warn("unexpected executor message", "executor_id", h.id, "type", msg.Type)
		}
	}

	if err := scanner.Err(); err != nil {
		h.logger.Debug("executor stream closed", "executor_id", h.id, "error", err)
	}
}

func (h *streamHandle) markDone() {
	h.doneOnce.Do(func() { close(h.done) })
}
