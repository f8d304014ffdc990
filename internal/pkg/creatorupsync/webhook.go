package creatorupsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/digiup/backend/app/models"
	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/creatorup"
)

// Webhook ingestion errors, mapped to HTTP status codes by the controller.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownUser      = errors.New("webhook references unknown user")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// WebhookEventTypes handled by the ingestor. Unknown types are accepted and
// logged but carry no side effects, so the partner can roll out new event
// kinds without breaking deliveries.
const (
	WebhookEventUsageUpdate        = "usage_update"
	WebhookEventSubscriptionUpdate = "subscription_update"
)

// WebhookIngestor processes signed inbound calls from CreatorUp. It owns the
// full ingestion order: signature first, then user resolution, then the audit
// row, then side effects. Nothing is persisted before the signature check
// passes.
type WebhookIngestor struct {
	secret   string
	users    repository.UserRepository
	webhooks repository.WebhookLogRepository
	usage    repository.UsageRepository
}

// NewWebhookIngestor wires the ingestor with the shared webhook secret.
func NewWebhookIngestor(secret string, repos *repository.Repositories) *WebhookIngestor {
	return &WebhookIngestor{
		secret:   secret,
		users:    repos.User,
		webhooks: repos.Webhook,
		usage:    repos.Usage,
	}
}

// webhookEnvelope is the partner's wire shape. The user reference arrives as
// either digiup_user_id or user_id depending on the sender's code path.
type webhookEnvelope struct {
	EventType    string                 `json:"event_type"`
	DigiUpUserID json.Number            `json:"digiup_user_id"`
	UserID       json.Number            `json:"user_id"`
	Data         map[string]interface{} `json:"data"`
}

func (e *webhookEnvelope) userID() (uint, error) {
	raw := e.DigiUpUserID
	if raw == "" {
		raw = e.UserID
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: missing user reference", ErrMalformedPayload)
	}
	id, err := strconv.ParseUint(raw.String(), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad user reference %q", ErrMalformedPayload, raw.String())
	}
	return uint(id), nil
}

// Process runs the full ingestion for one inbound webhook call. The signature
// is verified against the raw body exactly as received; re-serialized JSON
// would not match the sender's HMAC.
func (w *WebhookIngestor) Process(rawBody []byte, signature string) error {
	if !creatorup.VerifySignature(rawBody, signature, w.secret) {
		log.Warnf("[Webhook] Rejected call with invalid signature")
		return ErrInvalidSignature
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if envelope.EventType == "" {
		return fmt.Errorf("%w: missing event_type", ErrMalformedPayload)
	}

	userID, err := envelope.userID()
	if err != nil {
		return err
	}
	user, err := w.users.GetByID(userID)
	if err != nil {
		return fmt.Errorf("%w: user %d", ErrUnknownUser, userID)
	}

	entry := &models.WebhookLog{
		Source:    models.WEBHOOK_SOURCE_CREATORUP,
		EventType: envelope.EventType,
		Payload:   string(rawBody),
		Status:    models.WEBHOOK_STATUS_RECEIVED,
	}
	if err := w.webhooks.Create(entry); err != nil {
		return err
	}

	if err := w.dispatch(&envelope, user); err != nil {
		w.recordFailure(&envelope, rawBody, err)
		return err
	}

	// Finalization matches on (source, event_type, received) and may close
	// concurrently in-flight rows of the same type. Acceptable for an audit
	// trail; the raw payloads are already persisted.
	if _, err := w.webhooks.CompleteReceived(models.WEBHOOK_SOURCE_CREATORUP, envelope.EventType); err != nil {
		w.recordFailure(&envelope, rawBody, err)
		return err
	}

	log.Infof("[Webhook] Processed %s for user %d", envelope.EventType, user.ID)
	return nil
}

func (w *WebhookIngestor) dispatch(envelope *webhookEnvelope, user *models.User) error {
	switch envelope.EventType {
	case WebhookEventUsageUpdate:
		return w.applyUsageUpdate(envelope, user)
	case WebhookEventSubscriptionUpdate:
		return w.applySubscriptionUpdate(envelope, user)
	default:
		log.Infof("[Webhook] No handler for event type %s, recorded only", envelope.EventType)
		return nil
	}
}

// applyUsageUpdate appends a usage ledger row. Events without the two
// required fields are skipped silently; the audit row still completes.
func (w *WebhookIngestor) applyUsageUpdate(envelope *webhookEnvelope, user *models.User) error {
	data := envelope.Data
	batchName, _ := data["batch_name"].(string)
	usageType, _ := data["usage_type"].(string)
	if batchName == "" || usageType == "" {
		return nil
	}

	row := &models.CreatorUpUsage{
		UserID:          user.ID,
		CreatorUpUserID: stringOrDefault(data["creatorup_user_id"], strconv.FormatUint(uint64(user.ID), 10)),
		BatchName:       batchName,
		BatchType:       stringOrDefault(data["batch_type"], "video"),
		UsageType:       usageType,
		UsageAmount:     intOrDefault(data["usage_amount"], 1),
		MonthYear:       stringOrDefault(data["month_year"], models.CurrentMonthYear()),
		CompletedAt:     timeOrNow(data["completed_at"]),
		Metadata:        jsonOrEmpty(data["metadata"]),
	}
	return w.usage.CreateUsage(row)
}

// applySubscriptionUpdate overwrites the user's CreatorUp metadata blob with
// the event data plus an updated_at stamp. Last write wins; previously stored
// keys that the event does not carry are lost.
func (w *WebhookIngestor) applySubscriptionUpdate(envelope *webhookEnvelope, user *models.User) error {
	if len(envelope.Data) == 0 {
		return nil
	}

	metadata := make(map[string]interface{}, len(envelope.Data)+1)
	for k, v := range envelope.Data {
		metadata[k] = v
	}
	metadata["updated_at"] = time.Now().Format(time.RFC3339)

	blob, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	user.CreatorUpMetadata = string(blob)
	return w.users.Update(user)
}

// recordFailure writes an independent failed audit row. The original received
// row is left as-is so the raw body stays available for replay.
func (w *WebhookIngestor) recordFailure(envelope *webhookEnvelope, rawBody []byte, cause error) {
	eventType := envelope.EventType
	if eventType == "" {
		eventType = "unknown"
	}
	entry := &models.WebhookLog{
		Source:       models.WEBHOOK_SOURCE_CREATORUP,
		EventType:    eventType,
		Payload:      string(rawBody),
		Status:       models.WEBHOOK_STATUS_FAILED,
		ErrorMessage: cause.Error(),
	}
	if err := w.webhooks.Create(entry); err != nil {
		log.Errorf("[Webhook] Failed to record webhook failure: %v", err)
	}
}

func stringOrDefault(v interface{}, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func intOrDefault(v interface{}, fallback int) int {
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int(n)
		}
	case json.Number:
		if i, err := n.Int64(); err == nil && i > 0 {
			return int(i)
		}
	}
	return fallback
}

func timeOrNow(v interface{}) time.Time {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Now()
}

func jsonOrEmpty(v interface{}) string {
	if v == nil {
		return ""
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(blob)
}
