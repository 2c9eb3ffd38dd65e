package queue

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"inspection_portal/internal/automation/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisQueueKey = "automation:trigger_queue"
	// redisKeysKey maps a queue member to its trigger key, which a sorted
	// set score cannot carry.
	redisKeysKey = "automation:trigger_queue:keys"
)

const errRedisNotConfigured = "trigger queue redis client not configured"

// Redis backs the queue with one sorted set scored by execution time
// (unix milliseconds) plus a companion hash for the trigger key. The
// member is "inspectionID:triggerIndex", so ZADD naturally upserts the
// single record per slot.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func member(inspectionID uuid.UUID, triggerIndex int) string {
	return inspectionID.String() + ":" + strconv.Itoa(triggerIndex)
}

func parseMember(m string) (uuid.UUID, int, bool) {
	sep := strings.LastIndex(m, ":")
	if sep < 0 {
		return uuid.Nil, 0, false
	}
	id, err := uuid.Parse(m[:sep])
	if err != nil {
		return uuid.Nil, 0, false
	}
	idx, err := strconv.Atoi(m[sep+1:])
	if err != nil {
		return uuid.Nil, 0, false
	}
	return id, idx, true
}

func (q *Redis) Enqueue(ctx context.Context, rec Record) error {
	if q == nil || q.client == nil {
		return errors.New(errRedisNotConfigured)
	}

	m := member(rec.InspectionID, rec.TriggerIndex)
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, redisQueueKey, redis.Z{
		Score:  float64(rec.ExecutionTime.UnixMilli()),
		Member: m,
	})
	pipe.HSet(ctx, redisKeysKey, m, string(rec.TriggerKey))
	_, err := pipe.Exec(ctx)
	return err
}

func (q *Redis) Remove(ctx context.Context, inspectionID uuid.UUID, triggerIndex int) error {
	if q == nil || q.client == nil {
		return errors.New(errRedisNotConfigured)
	}

	m := member(inspectionID, triggerIndex)
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, redisQueueKey, m)
	pipe.HDel(ctx, redisKeysKey, m)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *Redis) PopDue(ctx context.Context, now time.Time) ([]Record, error) {
	if q == nil || q.client == nil {
		return nil, errors.New(errRedisNotConfigured)
	}

	due, err := q.client.ZRangeByScoreWithScores(ctx, redisQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, z := range due {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}

		// ZREM is the claim: exactly one concurrent poller sees 1 here.
		removed, err := q.client.ZRem(ctx, redisQueueKey, m).Result()
		if err != nil {
			return records, err
		}
		if removed == 0 {
			continue
		}

		triggerKey, err := q.client.HGet(ctx, redisKeysKey, m).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return records, err
		}
		_ = q.client.HDel(ctx, redisKeysKey, m).Err()

		inspectionID, idx, ok := parseMember(m)
		if !ok {
			continue
		}

		records = append(records, Record{
			InspectionID:  inspectionID,
			TriggerIndex:  idx,
			ExecutionTime: time.UnixMilli(int64(z.Score)).UTC(),
			TriggerKey:    domain.TriggerKey(triggerKey),
		})
	}

	return records, nil
}

func (q *Redis) ListForInspection(ctx context.Context, inspectionID uuid.UUID, onlyFuture bool) ([]Record, error) {
	if q == nil || q.client == nil {
		return nil, errors.New(errRedisNotConfigured)
	}

	all, err := q.client.ZRangeByScoreWithScores(ctx, redisQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	prefix := inspectionID.String() + ":"
	nowMs := float64(time.Now().UnixMilli())

	var records []Record
	for _, z := range all {
		m, ok := z.Member.(string)
		if !ok || !strings.HasPrefix(m, prefix) {
			continue
		}
		if onlyFuture && z.Score <= nowMs {
			continue
		}

		_, idx, ok := parseMember(m)
		if !ok {
			continue
		}

		triggerKey, err := q.client.HGet(ctx, redisKeysKey, m).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}

		records = append(records, Record{
			InspectionID:  inspectionID,
			TriggerIndex:  idx,
			ExecutionTime: time.UnixMilli(int64(z.Score)).UTC(),
			TriggerKey:    domain.TriggerKey(triggerKey),
		})
	}

	return records, nil
}

func (q *Redis) GarbageCollect(ctx context.Context, olderThan time.Duration) (int, error) {
	if q == nil || q.client == nil {
		return 0, errors.New(errRedisNotConfigured)
	}

	horizon := time.Now().Add(-olderThan)
	stale, err := q.client.ZRangeByScore(ctx, redisQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(horizon.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(stale))
	fields := make([]string, len(stale))
	for i, m := range stale {
		members[i] = m
		fields[i] = m
	}

	pipe := q.client.TxPipeline()
	removed := pipe.ZRem(ctx, redisQueueKey, members...)
	pipe.HDel(ctx, redisKeysKey, fields...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(removed.Val()), nil
}

var _ Queue = (*Redis)(nil)
