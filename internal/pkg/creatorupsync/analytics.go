package creatorupsync

import (
	"context"
	"time"

	"github.com/digiup/backend/app/models"
)

// AnalyticsPeriod resolves the admin query parameters into a concrete range.
// startDate/endDate (2006-01-02) win over the named period; the named period
// accepts 7d, 30d and 90d and defaults to 30d.
type AnalyticsPeriod struct {
	Start time.Time
	End   time.Time
}

// ResolveAnalyticsPeriod parses the raw query values.
func ResolveAnalyticsPeriod(period, startDate, endDate string) AnalyticsPeriod {
	if startDate != "" && endDate != "" {
		start, serr := time.Parse("2006-01-02", startDate)
		end, eerr := time.Parse("2006-01-02", endDate)
		if serr == nil && eerr == nil && !end.Before(start) {
			return AnalyticsPeriod{Start: start, End: end.AddDate(0, 0, 1)}
		}
	}

	days := 30
	switch period {
	case "7d":
		days = 7
	case "90d":
		days = 90
	}
	now := time.Now()
	return AnalyticsPeriod{Start: now.AddDate(0, 0, -days), End: now}
}

// SyncAnalytics builds the admin dashboard rollup for the given period.
// Counts are filtered by the period's lower bound; user sync coverage is a
// point-in-time snapshot and ignores the period.
func (s *Service) SyncAnalytics(ctx context.Context, period AnalyticsPeriod) (map[string]interface{}, error) {
	since := period.Start

	totalUsers, err := s.users.Count()
	if err != nil {
		return nil, err
	}
	syncedUsers, err := s.users.CountBySyncStatus(models.SYNC_STATUS_SYNCED)
	if err != nil {
		return nil, err
	}
	pendingUsers, err := s.users.CountBySyncStatus(models.SYNC_STATUS_PENDING)
	if err != nil {
		return nil, err
	}
	errorUsers, err := s.users.CountBySyncStatus(models.SYNC_STATUS_ERROR)
	if err != nil {
		return nil, err
	}

	totalEvents, err := s.events.Count(since)
	if err != nil {
		return nil, err
	}
	completedEvents, err := s.events.CountByStatus(models.SYNC_EVENT_STATUS_COMPLETED, since)
	if err != nil {
		return nil, err
	}
	failedEvents, err := s.events.CountByStatus(models.SYNC_EVENT_STATUS_FAILED, since)
	if err != nil {
		return nil, err
	}
	pendingEvents, err := s.events.CountByStatus(models.SYNC_EVENT_STATUS_PENDING, since)
	if err != nil {
		return nil, err
	}

	totalWebhooks, err := s.webhook.Count(since)
	if err != nil {
		return nil, err
	}
	completedWebhooks, err := s.webhook.CountByStatus(models.WEBHOOK_STATUS_COMPLETED, since)
	if err != nil {
		return nil, err
	}
	failedWebhooks, err := s.webhook.CountByStatus(models.WEBHOOK_STATUS_FAILED, since)
	if err != nil {
		return nil, err
	}

	totalUsage, err := s.usage.Count(since)
	if err != nil {
		return nil, err
	}
	monthlyUsage, err := s.usage.MonthlyBreakdown(since, 12)
	if err != nil {
		return nil, err
	}
	usageByType, err := s.usage.BreakdownByType(since)
	if err != nil {
		return nil, err
	}

	queueStats, err := s.stats.GetStatistics(ctx)
	if err != nil {
		queueStats = nil
	}

	recentEvents, err := s.events.ListRecent(since, 20)
	if err != nil {
		return nil, err
	}
	recentWebhooks, err := s.webhook.ListRecent(since, 20)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"period": map[string]interface{}{
			"start": period.Start.Format(time.RFC3339),
			"end":   period.End.Format(time.RFC3339),
		},
		"user_sync": map[string]interface{}{
			"total_users":     totalUsers,
			"synced_users":    syncedUsers,
			"pending_users":   pendingUsers,
			"error_users":     errorUsers,
			"sync_percentage": percentage(syncedUsers, totalUsers),
		},
		"sync_events": map[string]interface{}{
			"total":        totalEvents,
			"completed":    completedEvents,
			"failed":       failedEvents,
			"pending":      pendingEvents,
			"success_rate": percentage(completedEvents, totalEvents),
		},
		"webhooks": map[string]interface{}{
			"total":        totalWebhooks,
			"completed":    completedWebhooks,
			"failed":       failedWebhooks,
			"success_rate": percentage(completedWebhooks, totalWebhooks),
		},
		"usage": map[string]interface{}{
			"total_records":     totalUsage,
			"monthly_breakdown": monthlyUsage,
			"usage_by_type":     usageByType,
		},
		"queue": queueStats,
		"recent_activity": map[string]interface{}{
			"sync_events": recentEvents,
			"webhooks":    recentWebhooks,
		},
	}, nil
}

// UserSyncAnalytics builds the per-user drilldown: sync link state, last 50
// events, usage aggregates and webhook logs referencing the user.
func (s *Service) UserSyncAnalytics(ctx context.Context, userID uint) (map[string]interface{}, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	events, err := s.events.GetRecentByUser(userID, 50)
	if err != nil {
		return nil, err
	}

	totalUsage, err := s.usage.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	totalAmount, err := s.usage.SumAmountByUser(userID)
	if err != nil {
		return nil, err
	}
	monthlyUsage, err := s.usage.MonthlyBreakdownByUser(userID, 12)
	if err != nil {
		return nil, err
	}
	usageByType, err := s.usage.BreakdownByTypeForUser(userID)
	if err != nil {
		return nil, err
	}

	webhookLogs, err := s.webhook.FindByPayloadUserID(userID, 20)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"user": map[string]interface{}{
			"id":                    user.ID,
			"email":                 user.Email,
			"name":                  user.Name,
			"sync_status":           user.SyncStatus,
			"creatorup_user_id":     user.CreatorUpUserID,
			"creatorup_synced_at":   user.CreatorUpSyncedAt,
			"last_creatorup_access": user.LastCreatorUpAccess,
			"creatorup_metadata":    user.CreatorUpMetadata,
		},
		"sync_events": events,
		"usage_statistics": map[string]interface{}{
			"total_usage":       totalUsage,
			"total_amount":      totalAmount,
			"monthly_breakdown": monthlyUsage,
			"usage_by_type":     usageByType,
		},
		"webhook_logs": webhookLogs,
	}, nil
}
