package alertstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"inventory-ledger/internal/core"
)

const maxWatchRetries = 5

// raiseScript inserts an alert unless its dedup key already points at an open one.
// KEYS: open-index hash, alert key, id set. ARGV: dedup key, id, alert JSON, key prefix.
var raiseScript = redis.NewScript(`
local existing = redis.call('HGET', KEYS[1], ARGV[1])
if existing then
  return {0, redis.call('GET', ARGV[4] .. existing)}
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('SET', KEYS[2], ARGV[3])
redis.call('SADD', KEYS[3], ARGV[2])
return {1, ARGV[3]}
`)

// Redis is an AlertBook shared by every process pointed at the same Redis. Each alert is
// a JSON string under <prefix>alert:<id>; open alerts are indexed by dedup key.
type Redis struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger
	now    func() time.Time
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func NewRedis(rdb *redis.Client, prefix string, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	if prefix == "" {
		prefix = "ledger:"
	}
	return &Redis{rdb: rdb, prefix: prefix, log: log, now: func() time.Time { return time.Now().UTC() }}
}

var _ core.AlertBook = (*Redis)(nil)

func (r *Redis) alertKey(id uuid.UUID) string { return r.prefix + "alert:" + id.String() }
func (r *Redis) openKey() string             { return r.prefix + "alerts:open" }
func (r *Redis) idsKey() string              { return r.prefix + "alerts:ids" }

func (r *Redis) Raise(ctx context.Context, a core.StockAlert) (core.StockAlert, bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = core.AlertActive
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return core.StockAlert{}, false, fmt.Errorf("failed to encode alert: %w", err)
	}

	res, err := raiseScript.Run(ctx, r.rdb,
		[]string{r.openKey(), r.alertKey(a.ID), r.idsKey()},
		a.DedupKey(), a.ID.String(), data, r.prefix+"alert:",
	).Slice()
	if err != nil {
		return core.StockAlert{}, false, fmt.Errorf("failed to raise alert: %w", err)
	}
	if len(res) != 2 {
		return core.StockAlert{}, false, fmt.Errorf("raise alert: unexpected script reply %v", res)
	}
	created, _ := res[0].(int64)
	raw, _ := res[1].(string)
	var stored core.StockAlert
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return core.StockAlert{}, false, fmt.Errorf("failed to decode alert: %w", err)
	}
	return stored, created == 1, nil
}

func (r *Redis) Acknowledge(ctx context.Context, id uuid.UUID) (core.StockAlert, error) {
	return r.move(ctx, id, core.AlertAcknowledged)
}

func (r *Redis) Resolve(ctx context.Context, id uuid.UUID) (core.StockAlert, error) {
	return r.move(ctx, id, core.AlertResolved)
}

// move applies a lifecycle change under WATCH on the alert key, retrying when another
// client changed the alert first.
func (r *Redis) move(ctx context.Context, id uuid.UUID, to core.AlertStatus) (core.StockAlert, error) {
	key := r.alertKey(id)
	var out core.StockAlert
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("alert %s: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return err
		}
		var a core.StockAlert
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("failed to decode alert: %w", err)
		}
		if err := core.ApplyAlertStatus(&a, to, r.now()); err != nil {
			return err
		}
		next, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode alert: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, next, 0)
			if to == core.AlertResolved {
				p.HDel(ctx, r.openKey(), a.DedupKey())
			}
			return nil
		})
		if err == nil {
			out = a
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return core.StockAlert{}, err
		}
		r.log.Debug("alert update raced, retrying", zap.String("alert_id", id.String()), zap.Int("attempt", i+1))
	}
	return core.StockAlert{}, fmt.Errorf("alert %s: %w", id, core.ErrContention)
}

func (r *Redis) List(ctx context.Context, status *core.AlertStatus) ([]core.StockAlert, error) {
	ids, err := r.rdb.SMembers(ctx, r.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list alert ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.prefix+"alert:"+id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	var out []core.StockAlert
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a core.StockAlert
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("failed to decode alert: %w", err)
		}
		if status == nil || a.Status == *status {
			out = append(out, a)
		}
	}
	sortAlerts(out)
	return out, nil
}
