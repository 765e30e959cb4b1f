package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultQueueName    = "op-testqueue"
	DefaultResultTTL    = time.Hour
	DefaultPollInterval = time.Second
)

// NewRedisClient builds a client from a redis:// URL
func NewRedisClient(url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// CheckRedisConnection pings the server with a short deadline
func CheckRedisConnection(ctx context.Context, client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("error connecting to redis: %w", err)
	}
	return nil
}

// RedisConfig configures a RedisQueue
type RedisConfig struct {
	Log          log.Logger
	Name         string        // Key prefix shared by submitters and workers
	ResultTTL    time.Duration // How long an unclaimed result is kept
	PollInterval time.Duration // Blocking pop timeout between context checks
}

// RedisQueue is a Queue on a Redis list. Jobs are pushed to the head of
// "<name>:jobs" and popped from its tail; each result goes to its own
// "<name>:results:<job id>" list, which expires after ResultTTL.
type RedisQueue struct {
	client redis.UniversalClient
	log    log.Logger
	cfg    RedisConfig
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue creates a queue on client. The queue owns the client.
func NewRedisQueue(client redis.UniversalClient, cfg RedisConfig) *RedisQueue {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultQueueName
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultTTL
	}
	if cfg.PollInterval < time.Second {
		// BRPOP timeouts have second granularity
		cfg.PollInterval = DefaultPollInterval
	}
	return &RedisQueue{
		client: client,
		log:    cfg.Log.New("component", "redis-queue", "queue", cfg.Name),
		cfg:    cfg,
	}
}

func (q *RedisQueue) jobsKey() string {
	return q.cfg.Name + ":jobs"
}

func (q *RedisQueue) resultKey(jobID string) string {
	return q.cfg.Name + ":results:" + jobID
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	if err := q.client.LPush(ctx, q.jobsKey(), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	data, err := q.pop(ctx, q.jobsKey())
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) PublishResult(ctx context.Context, result *JobResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result of job %s: %w", result.JobID, err)
	}
	key := q.resultKey(result.JobID)
	_, err = q.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, data)
		p.Expire(ctx, key, q.cfg.ResultTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish result of job %s: %w", result.JobID, err)
	}
	return nil
}

func (q *RedisQueue) AwaitResult(ctx context.Context, jobID string) (*JobResult, error) {
	data, err := q.pop(ctx, q.resultKey(jobID))
	if err != nil {
		return nil, err
	}
	var result JobResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result of job %s: %w", jobID, err)
	}
	return &result, nil
}

// pop blocks on key until a value arrives or ctx is done
func (q *RedisQueue) pop(ctx context.Context, key string) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := q.client.BRPop(ctx, q.cfg.PollInterval, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("failed to pop %s: %w", key, err)
		}
		// BRPOP replies with [key, value]
		if len(res) != 2 {
			return nil, fmt.Errorf("unexpected reply from BRPOP on %s: %v", key, res)
		}
		return []byte(res[1]), nil
	}
}

func (q *RedisQueue) Ping(ctx context.Context) (string, error) {
	return q.client.Ping(ctx).Result()
}

// Len returns the number of pending jobs
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.jobsKey()).Result()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
