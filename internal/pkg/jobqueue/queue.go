package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes
	JobKeyPrefix     = "sync_job:"
	JobQueueKey      = "sync_job_queue"
	JobProcessingKey = "sync_job_processing"
	JobDelayedKey    = "sync_job_delayed"
	JobStatsKey      = "sync_job_stats"

	// Job settings
	DefaultMaxRetries = 3
	RetryBackoffBase  = 2 * time.Second

	// Job record retention inside Redis
	CompletedJobTTL = 24 * time.Hour
	FailedJobTTL    = 7 * 24 * time.Hour
	JobTTL          = 24 * time.Hour
)

// EnqueueOptions control delivery of a single job.
type EnqueueOptions struct {
	Delay    time.Duration
	Priority int
	JobID    string
}

// Enqueuer is the producer-facing slice of the queue. Tests substitute an
// in-memory implementation.
type Enqueuer interface {
	EnqueueJob(jobType JobType, payload map[string]interface{}, opts EnqueueOptions) (*Job, error)
}

// Processor executes one job. The sync processor implements this over the
// record store and partner client.
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// Statistics summarizes queue state for the analytics surface.
type Statistics struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}

// Queue manages durable sync jobs using Redis: a pending list consumed by a
// bounded worker pool, plus a delayed ZSET promoted by a background goroutine.
type Queue struct {
	client     *redis.Client
	processor  Processor
	workers    int
	workerPool chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a new job queue with an explicit Redis client and
// processor so callers own the lifecycle.
func NewQueue(client *redis.Client, processor Processor, workers int) *Queue {
	if workers <= 0 {
		workers = 5 // Default concurrency for sync jobs
	}

	return &Queue{
		client:     client,
		processor:  processor,
		workers:    workers,
		workerPool: make(chan struct{}, workers),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the job queue workers and the delayed-job promoter
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.stopCh = make(chan struct{})
	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	// Initialize worker pool
	for i := 0; i < q.workers; i++ {
		q.workerPool <- struct{}{}
	}

	// Start workers
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	// Promote due delayed jobs into the pending list
	q.wg.Add(1)
	go q.delayedPromoter(250 * time.Millisecond)

	// Recover jobs stuck in processing after crashes
	q.wg.Add(1)
	go q.stuckSweeper(10*time.Minute, 1*time.Minute)
}

// Stop stops the job queue workers
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

// IsRunning reports whether workers are active
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// EnqueueJob adds a new job to the queue. Delayed jobs land in the delayed
// ZSET and are promoted when due; immediate jobs go straight to the pending
// list, front-of-queue when the priority is high.
func (q *Queue) EnqueueJob(jobType JobType, payload map[string]interface{}, opts EnqueueOptions) (*Job, error) {
	ctx := context.Background()

	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	job := &Job{
		ID:         jobID,
		Type:       jobType,
		Status:     JobStatusPending,
		Priority:   opts.Priority,
		Payload:    payload,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	jobKey := JobKeyPrefix + job.ID

	// Use a pipeline for atomic operations. The stats hash only tracks
	// terminal outcomes; waiting and active are derived from the store.
	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKey, jobData, JobTTL)
	if opts.Delay > 0 {
		readyAt := float64(time.Now().Add(opts.Delay).UnixMilli())
		pipe.ZAdd(ctx, JobDelayedKey, redis.Z{Score: readyAt, Member: job.ID})
	} else {
		q.pushPending(pipe, job)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (Type: %s, Priority: %d, Delay: %s)", job.ID, job.Type, job.Priority, opts.Delay)
	return job, nil
}

type redisPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// pushPending places a job ID on the pending list. The list is consumed from
// the right, so RPush jumps the queue for high-priority jobs.
func (q *Queue) pushPending(p redisPusher, job *Job) {
	ctx := context.Background()
	if job.Priority >= PriorityHigh {
		p.RPush(ctx, JobQueueKey, job.ID)
	} else {
		p.LPush(ctx, JobQueueKey, job.ID)
	}
}

// delayedPromoter moves due jobs from the delayed ZSET into the pending list
func (q *Queue) delayedPromoter(interval time.Duration) {
	defer q.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			now := strconv.FormatInt(time.Now().UnixMilli(), 10)
			ids, err := q.client.ZRangeByScore(ctx, JobDelayedKey, &redis.ZRangeBy{
				Min: "-inf", Max: now, Count: 100,
			}).Result()
			if err != nil {
				log.Errorf("[JobQueue] Promoter ZRangeByScore error: %v", err)
				continue
			}
			for _, id := range ids {
				// Only the remover of the ZSET entry promotes the job
				removed, err := q.client.ZRem(ctx, JobDelayedKey, id).Result()
				if err != nil || removed == 0 {
					continue
				}
				job, err := q.GetJob(ctx, id)
				if err != nil {
					log.Errorf("[JobQueue] Promoter lost job data for %s: %v", id, err)
					continue
				}
				q.pushPending(q.client, job)
			}
		}
	}
}

// stuckSweeper periodically scans the processing list and requeues jobs stuck for longer than maxAge
func (q *Queue) stuckSweeper(maxAge time.Duration, interval time.Duration) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Stuck sweeper running (maxAge=%s, interval=%s)", maxAge, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			log.Info("[JobQueue] Stuck sweeper stopping")
			return
		case <-ticker.C:
			ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
			if err != nil {
				log.Errorf("[JobQueue] Sweeper LRange error: %v", err)
				continue
			}
			now := time.Now()
			for _, id := range ids {
				jobKey := JobKeyPrefix + id
				data, err := q.client.Get(ctx, jobKey).Result()
				if err != nil {
					// Job data missing; remove from processing list
					if err != redis.Nil {
						log.Errorf("[JobQueue] Sweeper Get error for %s: %v", id, err)
					}
					_ = q.client.LRem(ctx, JobProcessingKey, 1, id).Err()
					continue
				}
				var job Job
				if uerr := json.Unmarshal([]byte(data), &job); uerr != nil {
					log.Errorf("[JobQueue] Sweeper unmarshal error for %s: %v", id, uerr)
					_ = q.client.LRem(ctx, JobProcessingKey, 1, id).Err()
					continue
				}
				if job.Status != JobStatusProcessing {
					// Clean up stray entry
					_ = q.client.LRem(ctx, JobProcessingKey, 1, id).Err()
					continue
				}
				started := job.ProcessedAt
				if started == nil || started.IsZero() {
					tmp := job.UpdatedAt
					if tmp.IsZero() {
						tmp = job.CreatedAt
					}
					started = &tmp
				}
				if now.Sub(*started) > maxAge {
					log.Warnf("[JobQueue] Recovering stuck job %s (type=%s), age=%s", job.ID, job.Type, now.Sub(*started))
					job.Status = JobStatusPending
					job.ErrorMsg = "recovered by sweeper"
					job.UpdatedAt = now
					q.updateJob(ctx, &job)
					_ = q.client.LRem(ctx, JobProcessingKey, 1, id).Err()
					q.pushPending(q.client, &job)
				}
			}
		}
	}
}

// worker processes jobs from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue] Worker %d stopping", id)
			return
		default:
			// Acquire worker slot
			<-q.workerPool

			job, err := q.dequeueJob(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[JobQueue] Worker %d: Error dequeuing job: %v", id, err)
				}
				// Release worker slot and wait before retry
				q.workerPool <- struct{}{}
				time.Sleep(time.Second)
				continue
			}

			if job != nil {
				log.Infof("[JobQueue] Worker %d processing job %s (Type: %s)", id, job.ID, job.Type)
				q.processJob(ctx, job)
			}

			// Release worker slot
			q.workerPool <- struct{}{}
		}
	}
}

// dequeueJob gets the next job from the queue
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	// Move job from pending queue to processing queue atomically
	result, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	jobID := result
	jobKey := JobKeyPrefix + jobID

	jobData, err := q.client.Get(ctx, jobKey).Result()
	if err != nil {
		// Job data not found, remove from processing queue
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
		return nil, fmt.Errorf("job data not found for ID %s", jobID)
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		// Invalid job data, remove from processing queue
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}

	return &job, nil
}

// processJob processes a single job and routes failures into the retry policy:
// three attempts with exponential backoff starting at RetryBackoffBase.
func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	err := q.processor.Process(ctx, job)

	if err != nil {
		log.Errorf("[JobQueue] Job %s failed: %v", job.ID, err)
		job.MarkAsFailed(err.Error())

		if job.IsRetryable() {
			log.Infof("[JobQueue] Retrying job %s (Attempt %d/%d)", job.ID, job.RetryCount, job.MaxRetries)
			job.MarkAsRetrying()
			q.updateJob(ctx, job)

			// Re-enqueue after exponential backoff: 2s, 4s, 8s
			backoff := RetryBackoffBase << (job.RetryCount - 1)
			jobCopy := *job
			time.AfterFunc(backoff, func() {
				q.pushPending(q.client, &jobCopy)
			})
		} else {
			log.Errorf("[JobQueue] Job %s permanently failed after %d retries", job.ID, job.RetryCount)
			q.updateJobStats(ctx, JobStatusFailed, 1)
			q.retainJob(ctx, job, FailedJobTTL)
		}
	} else {
		log.Infof("[JobQueue] Job %s completed successfully", job.ID)
		job.MarkAsCompleted()
		q.updateJobStats(ctx, JobStatusCompleted, 1)
		q.retainJob(ctx, job, CompletedJobTTL)
	}

	q.updateJob(ctx, job)
	q.removeFromProcessing(ctx, job.ID)
}

// updateJob updates job data in Redis
func (q *Queue) updateJob(ctx context.Context, job *Job) {
	jobData, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}

	jobKey := JobKeyPrefix + job.ID
	if err := q.client.Set(ctx, jobKey, jobData, redis.KeepTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}

// retainJob resets the record TTL according to its terminal state so the
// cleanup policy (completed 24h, failed 7d) holds even without sweeps.
func (q *Queue) retainJob(ctx context.Context, job *Job, ttl time.Duration) {
	jobKey := JobKeyPrefix + job.ID
	if err := q.client.Expire(ctx, jobKey, ttl).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to set retention TTL for job %s: %v", job.ID, err)
	}
}

// removeFromProcessing removes a job from the processing queue
func (q *Queue) removeFromProcessing(ctx context.Context, jobID string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, jobID).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove job %s from processing queue: %v", jobID, err)
	}
}

// updateJobStats updates job statistics
func (q *Queue) updateJobStats(ctx context.Context, status JobStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), delta).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	jobKey := JobKeyPrefix + jobID
	jobData, err := q.client.Get(ctx, jobKey).Result()
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// GetStatistics returns waiting/active/completed/failed counters for the
// analytics surface. Waiting includes the delayed bucket.
func (q *Queue) GetStatistics(ctx context.Context) (*Statistics, error) {
	waiting, err := q.client.LLen(ctx, JobQueueKey).Result()
	if err != nil {
		return nil, err
	}
	delayed, err := q.client.ZCard(ctx, JobDelayedKey).Result()
	if err != nil {
		return nil, err
	}
	active, err := q.client.LLen(ctx, JobProcessingKey).Result()
	if err != nil {
		return nil, err
	}
	counters, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		Waiting: waiting + delayed,
		Active:  active,
	}
	if v, err := strconv.ParseInt(counters[string(JobStatusCompleted)], 10, 64); err == nil {
		stats.Completed = v
	}
	if v, err := strconv.ParseInt(counters[string(JobStatusFailed)], 10, 64); err == nil {
		stats.Failed = v
	}
	stats.Total = stats.Waiting + stats.Active + stats.Completed + stats.Failed
	return stats, nil
}

// CleanupOldJobs purges terminal job records past their retention window:
// completed jobs after 24 hours, failed jobs after 7 days.
func (q *Queue) CleanupOldJobs(ctx context.Context) (int64, error) {
	keys, err := q.client.Keys(ctx, JobKeyPrefix+"*").Result()
	if err != nil {
		return 0, err
	}

	var deleted int64
	now := time.Now()
	for _, key := range keys {
		data, err := q.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			continue
		}

		var cutoff time.Duration
		switch job.Status {
		case JobStatusCompleted:
			cutoff = CompletedJobTTL
		case JobStatusFailed:
			if !job.IsRetryable() {
				cutoff = FailedJobTTL
			}
		}
		if cutoff == 0 {
			continue
		}
		if now.Sub(job.UpdatedAt) > cutoff {
			if err := q.client.Del(ctx, key).Err(); err == nil {
				deleted++
			}
		}
	}

	return deleted, nil
}
