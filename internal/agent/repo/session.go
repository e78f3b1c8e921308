package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inventory-assistant/server/internal/agent/model"
	errx "github.com/inventory-assistant/server/internal/core/error"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

// RedisSessionRepository keeps three keys per session: the creation marker,
// the transcript list and the busy flag used as a single-flight guard.
type RedisSessionRepository struct {
	rdb         redis.Cmdable
	ttl         time.Duration
	busyTimeout time.Duration
}

func NewRedisSessionRepository(rdb redis.Cmdable, cfg model.SessionConfig) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: cfg.TTL, busyTimeout: cfg.BusyTimeout}
}

func (r *RedisSessionRepository) sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func (r *RedisSessionRepository) turnsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}

func (r *RedisSessionRepository) busyKey(sessionID string) string {
	return fmt.Sprintf("session:%s:busy", sessionID)
}

func (r *RedisSessionRepository) CreateSession(ctx context.Context, sessionID string, createdAt time.Time) error {
	key := r.sessionKey(sessionID)
	if err := r.rdb.Set(ctx, key, createdAt.UTC().Format(time.RFC3339Nano), r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to create session in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	key := r.sessionKey(sessionID)
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to check session in redis")
		return false, errx.WrapRedis(err)
	}
	return n > 0, nil
}

func (r *RedisSessionRepository) AppendTurn(ctx context.Context, sessionID string, turn model.ChatTurn) error {
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := r.turnsKey(sessionID)

	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		for _, k := range []string{key, r.sessionKey(sessionID)} {
			if ok, err := r.rdb.Expire(ctx, k, r.ttl).Result(); err != nil {
				logx.Error().Err(err).Str("key", k).Msg("failed to set expire")
				return errx.WrapRedis(err)
			} else if !ok {
				logx.Warn().Str("key", k).Dur("ttl", r.ttl).Msg("failed to set TTL on session key")
			}
		}
	}
	return nil
}

func (r *RedisSessionRepository) LoadTranscript(ctx context.Context, sessionID string) (*model.Transcript, error) {
	key := r.turnsKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.Transcript{SessionID: sessionID, Turns: []model.ChatTurn{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis(err)
	}

	turns := make([]model.ChatTurn, 0, len(rows))
	for i, s := range rows {
		var turn model.ChatTurn
		if err := json.Unmarshal([]byte(s), &turn); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, turn)
	}
	return &model.Transcript{SessionID: sessionID, Turns: turns}, nil
}

func (r *RedisSessionRepository) ClearTranscript(ctx context.Context, sessionID string) error {
	key := r.turnsKey(sessionID)
	if err := r.rdb.Del(ctx, key, r.busyKey(sessionID)).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete transcript from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) TurnCount(ctx context.Context, sessionID string) (int, error) {
	key := r.turnsKey(sessionID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get turn count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

// releaseScript deletes the busy flag only while it still holds the caller's
// token, so a turn that outlived the busy timeout cannot drop a newer guard.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireTurn sets the busy flag to token unless it is already set. The flag
// expires after the busy timeout so a crashed turn cannot lock a session forever.
func (r *RedisSessionRepository) AcquireTurn(ctx context.Context, sessionID, token string) (bool, error) {
	key := r.busyKey(sessionID)
	ok, err := r.rdb.SetNX(ctx, key, token, r.busyTimeout).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to acquire session turn")
		return false, errx.WrapRedis(err)
	}
	return ok, nil
}

// ReleaseTurn clears the busy flag if token still owns it.
func (r *RedisSessionRepository) ReleaseTurn(ctx context.Context, sessionID, token string) (bool, error) {
	key := r.busyKey(sessionID)
	n, err := releaseScript.Run(ctx, r.rdb, []string{key}, token).Int()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to release session turn")
		return false, errx.WrapRedis(err)
	}
	if n == 0 {
		logx.Warn().Str("key", key).Msg("session turn guard no longer owned; leaving it in place")
		return false, nil
	}
	return true, nil
}

var _ model.SessionRepository = (*RedisSessionRepository)(nil)
