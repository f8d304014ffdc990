package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/creatorupsync"
	"github.com/digiup/backend/internal/pkg/jobqueue"
)

// HandleAdminSyncAnalytics returns the sync dashboard rollup.
// Query: period=7d|30d|90d or startDate/endDate (2006-01-02).
func HandleAdminSyncAnalytics(c *fiber.Ctx) error {
	period := creatorupsync.ResolveAnalyticsPeriod(
		c.Query("period", "30d"),
		c.Query("startDate"),
		c.Query("endDate"),
	)

	data, err := syncService.SyncAnalytics(c.UserContext(), period)
	if err != nil {
		log.Errorf("[Admin] Sync analytics failed: %v", err)
		return respondError(c, fiber.StatusInternalServerError, "Failed to build sync analytics")
	}
	return respondSuccess(c, fiber.StatusOK, "Sync analytics retrieved successfully", data)
}

// HandleAdminUserSyncAnalytics returns the per-user sync drilldown.
func HandleAdminUserSyncAnalytics(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("userId"), 10, 64)
	if err != nil || userID == 0 {
		return respondError(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	data, err := syncService.UserSyncAnalytics(c.UserContext(), uint(userID))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return respondError(c, fiber.StatusNotFound, "User not found")
		}
		log.Errorf("[Admin] User sync analytics failed for %d: %v", userID, err)
		return respondError(c, fiber.StatusInternalServerError, "Failed to build user analytics")
	}
	return respondSuccess(c, fiber.StatusOK, "User sync analytics retrieved successfully", data)
}

// HandleAdminSystemHealth reports the combined health of the database, the
// job store and the partner API.
func HandleAdminSystemHealth(c *fiber.Ctx) error {
	data := syncService.SystemHealth(c.UserContext())
	return respondSuccess(c, fiber.StatusOK, "System health retrieved successfully", data)
}

// HandleAdminRetrySync runs a retry sweep over failed sync events.
func HandleAdminRetrySync(c *fiber.Ctx) error {
	result, err := syncService.RetryFailedSyncEvents(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Retry sweep failed: %v", err)
		return respondError(c, fiber.StatusInternalServerError, "Retry sweep failed")
	}
	return respondSuccess(c, fiber.StatusOK, "Failed sync events retry initiated", result)
}

// HandleAdminCleanup purges aged terminal records and old queue jobs.
func HandleAdminCleanup(c *fiber.Ctx) error {
	result, err := syncService.CleanupOldData(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Cleanup failed: %v", err)
		return respondError(c, fiber.StatusInternalServerError, "Cleanup failed")
	}
	return respondSuccess(c, fiber.StatusOK, "Old data cleanup completed", result)
}

// HandleAdminSyncStatistics returns the pipeline coverage aggregates.
func HandleAdminSyncStatistics(c *fiber.Ctx) error {
	data, err := syncService.SyncStatistics(c.UserContext())
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to build sync statistics")
	}
	return respondSuccess(c, fiber.StatusOK, "Sync statistics retrieved successfully", data)
}

// HandleAdminUsers lists accounts with their sync link fields, paginated.
func HandleAdminUsers(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	repos := repository.GetGlobalRepositories()
	users, err := repos.User.List(offset, limit)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to load users")
	}
	total, err := repos.User.Count()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to count users")
	}

	items := make([]fiber.Map, 0, len(users))
	for i := range users {
		u := &users[i]
		items = append(items, fiber.Map{
			"id":                  u.ID,
			"name":                u.Name,
			"email":               u.Email,
			"status":              u.Status,
			"sync_status":         u.SyncStatus,
			"creatorup_user_id":   u.CreatorUpUserID,
			"creatorup_synced_at": u.CreatorUpSyncedAt,
			"created_at":          u.CreatedAt,
		})
	}

	return respondSuccess(c, fiber.StatusOK, "", fiber.Map{
		"users":  items,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// HandleAdminQueueJobs lists raw job records from the Redis job store with
// status and TTL, for operational inspection.
func HandleAdminQueueJobs(c *fiber.Ctx) error {
	queueRepo := repository.GetGlobalRepositories().Queue
	keys, err := queueRepo.GetJobKeys()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Failed to list queue jobs")
	}

	jobs := make([]fiber.Map, 0, len(keys))
	for _, key := range keys {
		value, err := queueRepo.GetValue(key)
		if err != nil {
			continue
		}
		ttl, err := queueRepo.GetTTL(key)
		if err != nil {
			ttl = -1
		}
		jobs = append(jobs, fiber.Map{
			"job_id":      strings.TrimPrefix(key, jobqueue.JobKeyPrefix),
			"status":      jobStatusFromValue(value),
			"ttl_seconds": int64(ttl.Seconds()),
			"size_bytes":  len(value),
		})
	}

	return respondSuccess(c, fiber.StatusOK, "", fiber.Map{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// HandleAdminQueueJobDelete removes one job record from the store.
func HandleAdminQueueJobDelete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return respondError(c, fiber.StatusBadRequest, "Job ID is required")
	}

	if err := repository.GetGlobalRepositories().Queue.DeleteKey(jobqueue.JobKeyPrefix + jobID); err != nil {
		return respondError(c, fiber.StatusNotFound, "Job not found")
	}
	return respondSuccess(c, fiber.StatusOK, "Job deleted", nil)
}

// jobStatusFromValue extracts the status field from serialized job data
// without a full JSON parse.
func jobStatusFromValue(jsonValue string) string {
	for _, status := range []string{"pending", "processing", "completed", "failed", "retrying"} {
		if strings.Contains(jsonValue, `"status":"`+status+`"`) {
			return status
		}
	}
	return "unknown"
}
