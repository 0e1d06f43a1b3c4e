// Package insight caches generated natural-language insights per scope.
// At most one row per scope key is active at any time.
package insight

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/insight/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
)

// ErrNoCache means no fresh active insight exists for the scope. Read never
// generates one; the caller decides whether to.
var ErrNoCache = errors.New("no cached insight for scope")

type Repository interface {
	// GetActive returns the active row for scopeKey, expired or not.
	GetActive(ctx context.Context, scopeKey string) (*model.CachedInsight, error)
	// LastKnown returns the most recently generated row, active or not.
	LastKnown(ctx context.Context, scopeKey string) (*model.CachedInsight, error)
	// Replace deactivates the current row and inserts ins in one transaction.
	Replace(ctx context.Context, ins *model.CachedInsight) error
	// DeactivateExpired returns the scope keys it deactivated.
	DeactivateExpired(ctx context.Context, now time.Time) ([]string, error)
}

type UseCase interface {
	Read(ctx context.Context, scope dto.Scope) (*model.CachedInsight, error)
	Write(ctx context.Context, scope dto.Scope, payload *dto.Payload, summary string) (*model.CachedInsight, error)
	PreparePayload(ctx context.Context, scope dto.Scope) (*dto.Payload, error)
	GetOrGenerate(ctx context.Context, scope dto.Scope, summarizer Summarizer) (*dto.GenerateResult, error)
	SweepExpired(ctx context.Context) (int, error)
}

// Summarizer is the external language-model call. This service only prepares
// its input and caches its output.
type Summarizer interface {
	Summarize(ctx context.Context, payload *dto.Payload) (string, error)
}

// Cache fronts the active row per scope. Entries are versioned so a reader
// never re-populates a row that a concurrent writer has already replaced.
// *cache.RedisClient satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) error
	Version(ctx context.Context, key string) (int64, error)
	BumpVersion(ctx context.Context, key string) (int64, error)
	SetJSONIfVersion(ctx context.Context, key, versionKey string, version int64, v interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}
