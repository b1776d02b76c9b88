package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ridecore/internal/tasks"
)

const (
	jobScheduleKey = "jobs:schedule"
	jobDataKey     = "jobs:data"
)

// popDueScript atomically takes the earliest job whose score is <= ARGV[1].
var popDueScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
if #ids == 0 then
	return false
end
redis.call("ZREM", KEYS[1], ids[1])
local data = redis.call("HGET", KEYS[2], ids[1])
redis.call("HDEL", KEYS[2], ids[1])
return data
`)

// JobQueue is a tasks.Queue backed by a Redis sorted set scored by due time.
// Jobs survive process restarts and are shared by every worker process.
type JobQueue struct {
	client *redis.Client
}

// NewJobQueue creates a JobQueue.
func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

// Enqueue stores job under its ID, replacing any previous copy.
func (q *JobQueue) Enqueue(ctx context.Context, job tasks.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobDataKey, job.ID, data)
	pipe.ZAdd(ctx, jobScheduleKey, redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: job.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// Dequeue pops the earliest job due at or before now.
func (q *JobQueue) Dequeue(ctx context.Context, now time.Time) (tasks.Job, bool, error) {
	res, err := popDueScript.Run(ctx, q.client,
		[]string{jobScheduleKey, jobDataKey},
		strconv.FormatInt(now.UnixMilli(), 10),
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return tasks.Job{}, false, nil
		}
		return tasks.Job{}, false, err
	}

	var job tasks.Job
	if err := json.Unmarshal([]byte(res), &job); err != nil {
		return tasks.Job{}, false, fmt.Errorf("decode job: %w", err)
	}
	return job, true, nil
}

// Len returns the number of scheduled jobs.
func (q *JobQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, jobScheduleKey).Result()
}
