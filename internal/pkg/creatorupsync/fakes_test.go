package creatorupsync

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/digiup/backend/app/models"
	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/jobqueue"
)

// In-memory repository fakes shared by the tests in this package.

type fakeUserRepo struct {
	users map[uint]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uint]*models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(user *models.User) error {
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Count() (int64, error) { return int64(len(r.users)), nil }

func (r *fakeUserRepo) CountBySyncStatus(status string) (int64, error) {
	var n int64
	for _, u := range r.users {
		if u.SyncStatus == status {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) List(offset, limit int) ([]models.User, error) { return nil, nil }

type fakeEventRepo struct {
	events map[uint]*models.SyncEvent
	nextID uint
}

func newFakeEventRepo(events ...*models.SyncEvent) *fakeEventRepo {
	r := &fakeEventRepo{events: map[uint]*models.SyncEvent{}, nextID: 1}
	for _, e := range events {
		if e.ID == 0 {
			e.ID = r.nextID
		}
		if e.ID >= r.nextID {
			r.nextID = e.ID + 1
		}
		copied := *e
		r.events[e.ID] = &copied
	}
	return r
}

func (r *fakeEventRepo) Create(event *models.SyncEvent) error {
	event.ID = r.nextID
	r.nextID++
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *fakeEventRepo) Update(event *models.SyncEvent) error {
	if _, ok := r.events[event.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *event
	r.events[event.ID] = &copied
	return nil
}

func (r *fakeEventRepo) GetByID(id uint) (*models.SyncEvent, error) {
	if e, ok := r.events[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEventRepo) FindActiveByTypeAndUser(eventType string, userID uint) (*models.SyncEvent, error) {
	for _, e := range r.events {
		if e.EventType == eventType && e.UserID != nil && *e.UserID == userID && !e.IsTerminal() {
			copied := *e
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEventRepo) FailProcessing(eventType string, userID uint, errorMessage, response string) (int64, error) {
	var n int64
	for _, e := range r.events {
		if e.EventType == eventType && e.UserID != nil && *e.UserID == userID && e.Status == models.SYNC_EVENT_STATUS_PROCESSING {
			e.Status = models.SYNC_EVENT_STATUS_FAILED
			e.ErrorMessage = errorMessage
			e.Response = response
			n++
		}
	}
	return n, nil
}

func (r *fakeEventRepo) GetRecentByUser(userID uint, limit int) ([]models.SyncEvent, error) {
	out := []models.SyncEvent{}
	for _, e := range r.events {
		if e.UserID != nil && *e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) ListRecent(since time.Time, limit int) ([]models.SyncEvent, error) {
	return nil, nil
}

func (r *fakeEventRepo) FindFailedRetryable(limit int) ([]models.SyncEvent, error) {
	out := []models.SyncEvent{}
	for _, e := range r.events {
		if e.IsRetryable() {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeEventRepo) Count(since time.Time) (int64, error) {
	return int64(len(r.events)), nil
}

func (r *fakeEventRepo) CountByStatus(status string, since time.Time) (int64, error) {
	var n int64
	for _, e := range r.events {
		if e.Status == status && (since.IsZero() || e.CreatedAt.After(since)) {
			n++
		}
	}
	return n, nil
}

func (r *fakeEventRepo) DeleteTerminalOlderThan(cutoff time.Time) (int64, error) {
	var n int64
	for id, e := range r.events {
		if e.IsTerminal() && e.CreatedAt.Before(cutoff) {
			delete(r.events, id)
			n++
		}
	}
	return n, nil
}

type fakeWebhookRepo struct {
	logs   map[uint]*models.WebhookLog
	nextID uint
}

func newFakeWebhookRepo(logs ...*models.WebhookLog) *fakeWebhookRepo {
	r := &fakeWebhookRepo{logs: map[uint]*models.WebhookLog{}, nextID: 1}
	for _, l := range logs {
		if l.ID == 0 {
			l.ID = r.nextID
		}
		if l.ID >= r.nextID {
			r.nextID = l.ID + 1
		}
		copied := *l
		r.logs[l.ID] = &copied
	}
	return r
}

func (r *fakeWebhookRepo) Create(log *models.WebhookLog) error {
	log.ID = r.nextID
	r.nextID++
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	copied := *log
	r.logs[log.ID] = &copied
	return nil
}

func (r *fakeWebhookRepo) CompleteReceived(source, eventType string) (int64, error) {
	var n int64
	now := time.Now()
	for _, l := range r.logs {
		if l.Source == source && l.EventType == eventType && l.Status == models.WEBHOOK_STATUS_RECEIVED {
			l.Status = models.WEBHOOK_STATUS_COMPLETED
			l.ProcessedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *fakeWebhookRepo) ListRecent(since time.Time, limit int) ([]models.WebhookLog, error) {
	return nil, nil
}

func (r *fakeWebhookRepo) FindByPayloadUserID(userID uint, limit int) ([]models.WebhookLog, error) {
	return nil, nil
}

func (r *fakeWebhookRepo) Count(since time.Time) (int64, error) {
	return int64(len(r.logs)), nil
}

func (r *fakeWebhookRepo) CountByStatus(status string, since time.Time) (int64, error) {
	var n int64
	for _, l := range r.logs {
		if l.Status == status && (since.IsZero() || l.CreatedAt.After(since)) {
			n++
		}
	}
	return n, nil
}

func (r *fakeWebhookRepo) DeleteTerminalOlderThan(cutoff time.Time) (int64, error) {
	var n int64
	for id, l := range r.logs {
		if l.IsTerminal() && l.CreatedAt.Before(cutoff) {
			delete(r.logs, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeWebhookRepo) all() []*models.WebhookLog {
	out := make([]*models.WebhookLog, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeUsageRepo struct {
	usage      []*models.CreatorUpUsage
	batchUsage []*models.BatchUsage
}

func (r *fakeUsageRepo) CreateUsage(u *models.CreatorUpUsage) error {
	u.ID = uint(len(r.usage) + 1)
	r.usage = append(r.usage, u)
	return nil
}

func (r *fakeUsageRepo) CreateBatchUsage(u *models.BatchUsage) error {
	u.ID = uint(len(r.batchUsage) + 1)
	r.batchUsage = append(r.batchUsage, u)
	return nil
}

func (r *fakeUsageRepo) Count(since time.Time) (int64, error) { return int64(len(r.usage)), nil }
func (r *fakeUsageRepo) CountByUser(userID uint) (int64, error) {
	var n int64
	for _, u := range r.usage {
		if u.UserID == userID {
			n++
		}
	}
	return n, nil
}
func (r *fakeUsageRepo) SumAmountByUser(userID uint) (int64, error) {
	var sum int64
	for _, u := range r.usage {
		if u.UserID == userID {
			sum += int64(u.UsageAmount)
		}
	}
	return sum, nil
}
func (r *fakeUsageRepo) MonthlyBreakdown(since time.Time, limit int) ([]repository.MonthlyUsage, error) {
	return nil, nil
}
func (r *fakeUsageRepo) MonthlyBreakdownByUser(userID uint, limit int) ([]repository.MonthlyUsage, error) {
	return nil, nil
}
func (r *fakeUsageRepo) BreakdownByType(since time.Time) ([]repository.UsageByType, error) {
	return nil, nil
}
func (r *fakeUsageRepo) BreakdownByTypeForUser(userID uint) ([]repository.UsageByType, error) {
	return nil, nil
}

type fakeAppRepo struct{}

func (fakeAppRepo) ListActive() ([]models.App, error)                   { return nil, nil }
func (fakeAppRepo) GetByID(id uint) (*models.App, error)                { return nil, gorm.ErrRecordNotFound }
func (fakeAppRepo) GetPricingPlan(planID uint) (*models.AppPricingPlan, error) {
	return nil, gorm.ErrRecordNotFound
}
func (fakeAppRepo) CreateSubscription(sub *models.AppSubscription) error { return nil }
func (fakeAppRepo) GetSubscriptionsByUser(userID uint) ([]models.AppSubscription, error) {
	return nil, nil
}

type fakeQueueRepo struct{}

func (fakeQueueRepo) GetJobKeys() ([]string, error)          { return nil, nil }
func (fakeQueueRepo) GetValue(key string) (string, error)    { return "", nil }
func (fakeQueueRepo) GetTTL(key string) (time.Duration, error) { return 0, nil }
func (fakeQueueRepo) DeleteKey(key string) error             { return nil }

// enqueuedJob records one EnqueueJob call.
type enqueuedJob struct {
	Type    jobqueue.JobType
	Payload map[string]interface{}
	Opts    jobqueue.EnqueueOptions
}

type fakeQueue struct {
	jobs       []enqueuedJob
	enqueueErr error
	stats      *jobqueue.Statistics
	statsErr   error
	cleaned    int64
}

func (q *fakeQueue) EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}, opts jobqueue.EnqueueOptions) (*jobqueue.Job, error) {
	if q.enqueueErr != nil {
		return nil, q.enqueueErr
	}
	q.jobs = append(q.jobs, enqueuedJob{Type: jobType, Payload: payload, Opts: opts})
	return &jobqueue.Job{ID: opts.JobID, Type: jobType, Payload: payload}, nil
}

func (q *fakeQueue) GetStatistics(ctx context.Context) (*jobqueue.Statistics, error) {
	if q.statsErr != nil {
		return nil, q.statsErr
	}
	if q.stats != nil {
		return q.stats, nil
	}
	return &jobqueue.Statistics{}, nil
}

func (q *fakeQueue) CleanupOldJobs(ctx context.Context) (int64, error) {
	return q.cleaned, nil
}

type fakeHealthChecker struct{ healthy bool }

func (c fakeHealthChecker) HealthCheck(ctx context.Context) bool { return c.healthy }

func newTestRepos(users *fakeUserRepo, events *fakeEventRepo, webhooks *fakeWebhookRepo, usage repository.UsageRepository) *repository.Repositories {
	return &repository.Repositories{
		User:      users,
		SyncEvent: events,
		Webhook:   webhooks,
		Usage:     usage,
		App:       fakeAppRepo{},
		Queue:     fakeQueueRepo{},
	}
}
