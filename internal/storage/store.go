// Package storage persists JSON documents grouped in named collections.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/coachbot/core/logger"
)

// Collections used by the bot.
const (
	Sessions       = "sessions"
	Payments       = "payments"
	Questionnaires = "questionnaires"
	Plans          = "plans"
	// Corrupt keeps documents that no longer decode, keyed
	// <collection>/<key>@<timestamp>.
	Corrupt = "corrupt"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrNoChange may be returned by an UpdateJSON callback to skip the write.
	ErrNoChange = errors.New("storage: no change")
	// ErrCorrupt marks a stored document that does not decode. Errors carrying
	// it also match ErrNotFound, so readers fall back to their default.
	ErrCorrupt = errors.New("storage: corrupt document")
)

// Store is a durable keyed document store.
//
// Update runs fn with the current body (nil when absent) and persists the
// returned body before returning. A nil body from fn leaves the document
// untouched. fn must not call back into the store.
type Store interface {
	Get(ctx context.Context, coll, key string) ([]byte, error)
	Update(ctx context.Context, coll, key string, fn func(cur []byte) ([]byte, error)) error
	Scan(ctx context.Context, coll string, fn func(key string, body []byte) error) error
	Delete(ctx context.Context, coll, key string) error
	Close() error
}

func logCorrupt(ctx context.Context, coll, key, status string, err error) {
	logger.Warn(ctx, "storage", "storage.corrupt",
		slog.String("status", status),
		slog.String("path", coll+"/"+key),
		logger.Err(err),
	)
}

// GetJSON loads and decodes a document into a new T. A document that does
// not decode is reported as ErrCorrupt and ErrNotFound.
func GetJSON[T any](ctx context.Context, s Store, coll, key string) (T, error) {
	var v T
	body, err := s.Get(ctx, coll, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(body, &v); err != nil {
		logCorrupt(ctx, coll, key, "ignored", err)
		var zero T
		return zero, fmt.Errorf("decode %s/%s: %w", coll, key, errors.Join(ErrCorrupt, ErrNotFound, err))
	}
	return v, nil
}

// UpdateJSON decodes the current document (zero T when absent), applies fn and
// stores the result. exists reports whether the document was present.
//
// A document that does not decode is treated as absent: fn starts from a zero
// T, the result replaces the document and the old body is kept in Corrupt.
func UpdateJSON[T any](ctx context.Context, s Store, coll, key string, fn func(v *T, exists bool) error) error {
	var broken []byte
	var decodeErr error
	err := s.Update(ctx, coll, key, func(cur []byte) ([]byte, error) {
		var v T
		broken, decodeErr = nil, nil
		exists := cur != nil
		if exists {
			if err := json.Unmarshal(cur, &v); err != nil {
				broken, decodeErr = append([]byte(nil), cur...), err
				v, exists = *new(T), false
			}
		}
		if err := fn(&v, exists); err != nil {
			if errors.Is(err, ErrNoChange) && broken == nil {
				return nil, nil
			}
			if !errors.Is(err, ErrNoChange) {
				return nil, err
			}
		}
		return json.Marshal(&v)
	})
	if err != nil || broken == nil {
		return err
	}
	logCorrupt(ctx, coll, key, "recovered", decodeErr)
	if err := backupCorrupt(ctx, s, coll, key, broken); err != nil {
		logCorrupt(ctx, coll, key, "error", err)
	}
	return nil
}

// backupCorrupt stores body as a JSON string under Corrupt so it can be
// inspected later.
func backupCorrupt(ctx context.Context, s Store, coll, key string, body []byte) error {
	wrapped, err := json.Marshal(string(body))
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s/%s@%s", coll, key, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := s.Update(ctx, Corrupt, name, func([]byte) ([]byte, error) { return wrapped, nil }); err != nil {
		return fmt.Errorf("back up corrupt %s/%s: %w", coll, key, err)
	}
	return nil
}

// ScanJSON decodes every document of coll in key order. Documents that do not
// decode are logged and skipped.
func ScanJSON[T any](ctx context.Context, s Store, coll string, fn func(key string, v T) error) error {
	return s.Scan(ctx, coll, func(key string, body []byte) error {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			logCorrupt(ctx, coll, key, "skip", err)
			return nil
		}
		return fn(key, v)
	})
}
