package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
	"github.com/vibecoding/vibemcp/internal/store"
)

// Defaults for Manager configuration.
const (
	DefaultWorkers         = 10
	DefaultQueueSize       = 256
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultMaxPerProject   = 50
	DefaultMaxTotal        = 200
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

// Config tunes the webhook manager.
type Config struct {
	// Enabled gates all delivery. When false, Fire is a no-op but
	// subscription management still works.
	Enabled bool

	// Workers is the delivery pool size. Default 10.
	Workers int

	// QueueSize is the pending-delivery buffer. A full queue drops
	// deliveries rather than blocking writes. Default 256.
	QueueSize int

	// Timeout bounds a single delivery attempt. Default 10s.
	Timeout time.Duration

	// MaxPerProject caps active subscriptions per project. Default 50.
	MaxPerProject int

	// MaxTotal caps active subscriptions overall. Default 200.
	MaxTotal int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultDeliveryTimeout
	}
	if c.MaxPerProject <= 0 {
		c.MaxPerProject = DefaultMaxPerProject
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = DefaultMaxTotal
	}
	return c
}

// Registration describes a new subscription.
type Registration struct {
	URL         string
	Secret      string
	EventTypes  []string
	Project     string // empty subscribes to all projects
	Description string
}

// envelope is the JSON body POSTed to subscribers. The signature is
// computed over these exact bytes.
type envelope struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Project   *string        `json:"project"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// delivery is one queued POST to one subscriber.
type delivery struct {
	sub       store.Subscription
	eventID   string
	eventType string
	payload   []byte
}

// Manager stores subscriptions and delivers events to them through a
// bounded worker pool. Delivery is at-most-once: an attempt is made,
// logged, and never retried.
type Manager struct {
	store  *store.Store
	cfg    Config
	client *http.Client
	queue  chan delivery
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewManager creates a manager and starts its delivery workers.
func NewManager(st *store.Store, cfg Config) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	cfg = cfg.withDefaults()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	m := &Manager{
		store:  st,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		queue:  make(chan delivery, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m, nil
}

// Register validates and stores a new subscription, returning it with
// its assigned id. The secret is kept server-side and never listed.
func (m *Manager) Register(ctx context.Context, reg Registration) (*store.Subscription, error) {
	if err := ValidateURL(reg.URL); err != nil {
		return nil, err
	}
	if len(reg.Secret) < MinSecretLength {
		return nil, verrors.ValidationError(
			fmt.Sprintf("secret must be at least %d characters", MinSecretLength), nil)
	}
	if len(reg.EventTypes) == 0 {
		return nil, verrors.ValidationError("at least one event type is required", nil)
	}
	for _, et := range reg.EventTypes {
		if !KnownEventType(et) {
			return nil, verrors.ValidationError(fmt.Sprintf("invalid event type: %s", et), nil)
		}
	}

	if reg.Project != "" {
		count, err := m.store.CountActiveSubscriptionsForProject(ctx, reg.Project)
		if err != nil {
			return nil, err
		}
		if count >= m.cfg.MaxPerProject {
			return nil, verrors.LimitError(fmt.Sprintf(
				"maximum subscriptions (%d) reached for project: %s",
				m.cfg.MaxPerProject, reg.Project), nil)
		}
	}
	total, err := m.store.CountActiveSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	if total >= m.cfg.MaxTotal {
		return nil, verrors.LimitError(fmt.Sprintf(
			"maximum subscriptions (%d) reached", m.cfg.MaxTotal), nil)
	}

	sub := &store.Subscription{
		URL:         reg.URL,
		Secret:      reg.Secret,
		EventTypes:  reg.EventTypes,
		Project:     reg.Project,
		Active:      true,
		Description: reg.Description,
	}
	id, err := m.store.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}
	sub.ID = id

	slog.Info("webhook_registered",
		slog.Int64("subscription_id", id),
		slog.String("url", reg.URL),
		slog.String("secret_hint", secretHint(reg.Secret)))
	return sub, nil
}

// Unregister removes a subscription by id.
func (m *Manager) Unregister(ctx context.Context, id int64) error {
	deleted, err := m.store.DeleteSubscription(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return verrors.NotFoundError(fmt.Sprintf("subscription not found: %d", id), nil)
	}
	slog.Info("webhook_unregistered", slog.Int64("subscription_id", id))
	return nil
}

// List returns subscriptions, optionally narrowed to a project, with
// secrets stripped.
func (m *Manager) List(ctx context.Context, project string) ([]store.Subscription, error) {
	subs, err := m.store.ListSubscriptions(ctx, project)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].Secret = ""
	}
	return subs, nil
}

// DeliveryLogs returns recent delivery attempts for one subscription,
// or for all when id is zero.
func (m *Manager) DeliveryLogs(ctx context.Context, id int64, limit int) ([]store.DeliveryLog, error) {
	return m.store.ListDeliveryLogs(ctx, id, limit)
}

// Fire schedules delivery of an event to every matching subscription
// and returns immediately. Project is empty for global events such as
// a reindex. Fire never fails; delivery problems are logged.
func (m *Manager) Fire(eventType, project string, data map[string]any) {
	if !m.cfg.Enabled {
		return
	}

	subs, err := m.store.SubscriptionsForEvent(context.Background(), eventType, project)
	if err != nil {
		slog.Error("webhook_match_failed",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
		return
	}
	if len(subs) == 0 {
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	var projectField *string
	if project != "" {
		projectField = &project
	}
	env := envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Project:   projectField,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		slog.Error("webhook_payload_failed", slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		slog.Warn("webhook_skipped_closed", slog.String("event_type", eventType))
		return
	}
	for _, sub := range subs {
		d := delivery{sub: sub, eventID: env.EventID, eventType: eventType, payload: payload}
		select {
		case m.queue <- d:
		default:
			slog.Warn("webhook_queue_full",
				slog.Int64("subscription_id", sub.ID),
				slog.String("event_type", eventType))
		}
	}
}

// Close stops accepting events and waits for in-flight deliveries up
// to the context deadline.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.client.CloseIdleConnections()
		slog.Info("webhook_manager_closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("webhook deliveries still in flight: %w", ctx.Err())
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for d := range m.queue {
		m.deliver(d)
	}
}

// deliver POSTs one signed payload and records the attempt.
func (m *Manager) deliver(d delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.sub.URL, bytes.NewReader(d.payload))
	if err != nil {
		m.logAttempt(d, 0, false, fmt.Sprintf("invalid request: %s", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Vibe-Signature", "sha256="+Sign(d.sub.Secret, d.payload))
	req.Header.Set("X-Vibe-Event", d.eventType)
	req.Header.Set("X-Vibe-Event-ID", d.eventID)

	resp, err := m.client.Do(req)
	if err != nil {
		msg := err.Error()
		var uerr *url.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &uerr) && uerr.Timeout()) {
			msg = "request timed out"
		}
		slog.Warn("webhook_delivery_failed",
			slog.Int64("subscription_id", d.sub.ID),
			slog.String("error", msg))
		m.logAttempt(d, 0, false, msg)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Info("webhook_delivered",
			slog.String("event_id", d.eventID),
			slog.Int64("subscription_id", d.sub.ID),
			slog.Int("status", resp.StatusCode))
		m.logAttempt(d, resp.StatusCode, true, "")
		return
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body)
	slog.Warn("webhook_delivery_failed",
		slog.Int64("subscription_id", d.sub.ID),
		slog.String("error", msg))
	m.logAttempt(d, resp.StatusCode, false, msg)
}

// logAttempt records one delivery attempt; a failure to record is
// logged but never retried.
func (m *Manager) logAttempt(d delivery, status int, success bool, errMsg string) {
	entry := &store.DeliveryLog{
		SubscriptionID: d.sub.ID,
		EventType:      d.eventType,
		EventID:        d.eventID,
		Payload:        string(d.payload),
		StatusCode:     status,
		Success:        success,
		ErrorMessage:   errMsg,
	}
	if err := m.store.LogDelivery(context.Background(), entry); err != nil {
		slog.Error("webhook_log_failed",
			slog.String("event_id", d.eventID),
			slog.String("error", err.Error()))
	}
}

// Sign computes the hex HMAC-SHA256 of body under secret, the value
// carried in X-Vibe-Signature after the "sha256=" prefix.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func secretHint(secret string) string {
	return secret[:4] + "..." + secret[len(secret)-4:]
}
