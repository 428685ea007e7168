// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey = "mail:queue"

	// maxAttempts bounds redelivery of a failing message.
	maxAttempts = 3

	popTimeout = time.Second
)

// ErrQueueFull is returned when the in-process buffer has no room.
var ErrQueueFull = errors.New("mail queue full")

// Queue holds messages until the worker delivers them. Without a Valkey
// client it falls back to an in-process buffer.
type Queue struct {
	client *redis.Client
	local  chan Message
	sender Sender
}

// NewQueue creates a queue delivering through sender.
func NewQueue(client *redis.Client, sender Sender) *Queue {
	q := &Queue{client: client, sender: sender}
	if client == nil {
		q.local = make(chan Message, 64)
	}
	return q
}

// Enqueue schedules m for delivery.
func (q *Queue) Enqueue(ctx context.Context, m Message) error {
	if q.client == nil {
		select {
		case q.local <- m:
			return nil
		default:
			return ErrQueueFull
		}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}
	if err := q.client.LPush(ctx, queueKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// pop waits for the next message. A nil message with nil error means the
// wait timed out.
func (q *Queue) pop(ctx context.Context) (*Message, error) {
	if q.client == nil {
		select {
		case m := <-q.local:
			return &m, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	res, err := q.client.BRPop(ctx, popTimeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Message
	if err := json.Unmarshal([]byte(res[1]), &m); err != nil {
		slog.Warn("dropping undecodable mail", "error", err)
		return nil, nil
	}
	return &m, nil
}

// Run delivers queued messages until ctx is cancelled. Failed deliveries
// are requeued up to maxAttempts times.
func (q *Queue) Run(ctx context.Context) {
	slog.Info("mail worker started")
	defer slog.Info("mail worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		m, err := q.pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("mail queue read error", "error", err)
			select {
			case <-time.After(popTimeout):
			case <-ctx.Done():
				return
			}
			continue
		}
		if m == nil {
			continue
		}
		q.deliver(ctx, *m)
	}
}

func (q *Queue) deliver(ctx context.Context, m Message) {
	err := q.sender.Send(ctx, m)
	if err == nil {
		slog.Debug("mail sent", "to", m.To, "subject", m.Subject)
		return
	}
	m.Attempts++
	if m.Attempts >= maxAttempts {
		slog.Error("mail delivery failed, giving up", "to", m.To, "subject", m.Subject, "attempts", m.Attempts, "error", err)
		return
	}
	slog.Warn("mail delivery failed, requeueing", "to", m.To, "attempts", m.Attempts, "error", err)
	if qerr := q.Enqueue(context.WithoutCancel(ctx), m); qerr != nil {
		slog.Error("mail requeue failed", "error", qerr)
	}
}
