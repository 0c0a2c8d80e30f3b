// Package cache records applied room updates to Redis for the historian
// pipeline. Recording is best-effort: a nil client disables it and a slow
// Redis never blocks the game loop.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// publishTimeout bounds each Redis write so a stalled connection cannot
// pile up goroutines.
const publishTimeout = 2 * time.Second

// RoundActionRecord is one applied update in a room's history list.
type RoundActionRecord struct {
	RoomID        uuid.UUID `json:"roomId"`
	ActionIndex   int64     `json:"actionIndex"`
	ActorID       uuid.UUID `json:"actorId"` // Nil for timer-driven updates.
	Origin        string    `json:"origin"`
	ChangedFields []string  `json:"changedFields,omitempty"`
	Timestamp     int64     `json:"timestamp"`
}

// Historian pushes action records onto a per-room Redis list.
type Historian struct {
	rdb  *redis.Client
	log  *logrus.Entry
	next atomic.Int64
}

// NewHistorian creates a historian. rdb may be nil to disable recording.
func NewHistorian(rdb *redis.Client, log *logrus.Entry) *Historian {
	return &Historian{rdb: rdb, log: log}
}

// Enabled reports whether a Redis client is configured.
func (h *Historian) Enabled() bool { return h != nil && h.rdb != nil }

// RecordAsync assigns the record its ordering index and publishes it on a
// separate goroutine. Failures are logged and swallowed.
func (h *Historian) RecordAsync(rec RoundActionRecord) {
	if !h.Enabled() {
		return
	}
	rec.ActionIndex = h.next.Add(1)
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.publish(ctx, rec); err != nil {
			h.log.WithFields(logrus.Fields{
				"room_id":      rec.RoomID,
				"action_index": rec.ActionIndex,
				"origin":       rec.Origin,
			}).WithError(err).Error("historian: failed publishing action record")
		}
	}()
}

// publish appends the record to the room's history list.
func (h *Historian) publish(ctx context.Context, rec RoundActionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	if err := h.rdb.RPush(ctx, historyKey(rec.RoomID), raw).Err(); err != nil {
		return fmt.Errorf("rpush action record: %w", err)
	}
	return nil
}

// History returns up to limit records from the start of a room's history.
// limit <= 0 returns the full list.
func (h *Historian) History(ctx context.Context, roomID uuid.UUID, limit int64) ([]RoundActionRecord, error) {
	if !h.Enabled() {
		return nil, nil
	}
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	raws, err := h.rdb.LRange(ctx, historyKey(roomID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange room history: %w", err)
	}
	out := make([]RoundActionRecord, 0, len(raws))
	for _, raw := range raws {
		var rec RoundActionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal action record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func historyKey(roomID uuid.UUID) string {
	return "room:" + roomID.String() + ":history"
}
