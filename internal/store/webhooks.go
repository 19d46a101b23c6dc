package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// CreateSubscription inserts a webhook subscription and returns its id.
// An empty Project is stored as NULL, meaning all projects.
func (s *Store) CreateSubscription(ctx context.Context, sub *Subscription) (int64, error) {
	types, err := json.Marshal(sub.EventTypes)
	if err != nil {
		return 0, fmt.Errorf("failed to encode event types: %w", err)
	}

	var id int64
	err = s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO webhook_subscriptions (url, secret, event_types, project, active, description)
			VALUES (?, ?, ?, ?, 1, ?)`,
			sub.URL, sub.Secret, string(types), nullIf(sub.Project), nullIf(sub.Description))
		if err != nil {
			return fmt.Errorf("failed to insert subscription: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read subscription id: %w", err)
		}
		return nil
	})
	return id, err
}

// DeleteSubscription removes a subscription and its delivery logs via
// cascade. It reports whether the subscription existed.
func (s *Store) DeleteSubscription(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM webhook_subscriptions WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete subscription %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count deleted rows: %w", err)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// ListSubscriptions returns subscriptions ordered by id. An empty
// project returns all of them; otherwise only subscriptions bound to
// exactly that project.
func (s *Store) ListSubscriptions(ctx context.Context, project string) ([]Subscription, error) {
	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	qb := sq.Select("id", "url", "secret", "event_types", "project", "active", "description", "created_at").
		From("webhook_subscriptions").
		OrderBy("id")
	if project != "" {
		qb = qb.Where(sq.Eq{"project": project})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build subscription query: %w", err)
	}
	return s.querySubscriptions(ctx, query, args...)
}

// SubscriptionsForEvent returns the active subscriptions that should
// receive an event: the project matches (or the subscription covers
// all projects) and the event type is subscribed, directly or via "*".
func (s *Store) SubscriptionsForEvent(ctx context.Context, eventType, project string) ([]Subscription, error) {
	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	subs, err := s.querySubscriptions(ctx, `
		SELECT id, url, secret, event_types, project, active, description, created_at
		FROM webhook_subscriptions
		WHERE active = 1 AND (project IS NULL OR project = ?)
		ORDER BY id`, project)
	if err != nil {
		return nil, err
	}

	matched := subs[:0]
	for _, sub := range subs {
		if subscribesTo(sub.EventTypes, eventType) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func subscribesTo(types []string, eventType string) bool {
	for _, t := range types {
		if t == eventType || t == "*" {
			return true
		}
	}
	return false
}

// CountActiveSubscriptions counts every active subscription.
func (s *Store) CountActiveSubscriptions(ctx context.Context) (int, error) {
	return s.countSubscriptions(ctx,
		"SELECT COUNT(*) FROM webhook_subscriptions WHERE active = 1")
}

// CountActiveSubscriptionsForProject counts active subscriptions bound
// to one project.
func (s *Store) CountActiveSubscriptionsForProject(ctx context.Context, project string) (int, error) {
	return s.countSubscriptions(ctx,
		"SELECT COUNT(*) FROM webhook_subscriptions WHERE active = 1 AND project = ?", project)
}

func (s *Store) countSubscriptions(ctx context.Context, query string, args ...any) (int, error) {
	release, err := s.checkOpen()
	if err != nil {
		return 0, err
	}
	defer release()

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return n, nil
}

// LogDelivery appends one delivery attempt to the webhook log.
func (s *Store) LogDelivery(ctx context.Context, log *DeliveryLog) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var statusCode any
		if log.StatusCode != 0 {
			statusCode = log.StatusCode
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO webhook_logs (subscription_id, event_type, event_id, payload, status_code, success, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			log.SubscriptionID, log.EventType, log.EventID, log.Payload,
			statusCode, boolToInt(log.Success), nullIf(log.ErrorMessage))
		if err != nil {
			return fmt.Errorf("failed to log delivery: %w", err)
		}
		return nil
	})
}

// ListDeliveryLogs returns recent delivery attempts, newest first.
// A zero subscriptionID returns attempts for every subscription.
func (s *Store) ListDeliveryLogs(ctx context.Context, subscriptionID int64, limit int) ([]DeliveryLog, error) {
	release, err := s.checkOpen()
	if err != nil {
		return nil, err
	}
	defer release()

	if limit <= 0 {
		limit = 50
	}

	qb := sq.Select("id", "subscription_id", "event_type", "event_id", "payload",
		"status_code", "success", "error_message", "created_at").
		From("webhook_logs").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	if subscriptionID != 0 {
		qb = qb.Where(sq.Eq{"subscription_id": subscriptionID})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build delivery log query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []DeliveryLog
	for rows.Next() {
		var (
			l          DeliveryLog
			statusCode sql.NullInt64
			success    int
			errMsg     sql.NullString
		)
		err := rows.Scan(&l.ID, &l.SubscriptionID, &l.EventType, &l.EventID, &l.Payload,
			&statusCode, &success, &errMsg, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery log: %w", err)
		}
		l.StatusCode = int(statusCode.Int64)
		l.Success = success == 1
		l.ErrorMessage = errMsg.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) querySubscriptions(ctx context.Context, query string, args ...any) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []Subscription
	for rows.Next() {
		var (
			sub           Subscription
			types         string
			project, desc sql.NullString
			active        int
		)
		err := rows.Scan(&sub.ID, &sub.URL, &sub.Secret, &types, &project, &active, &desc, &sub.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		if err := json.Unmarshal([]byte(types), &sub.EventTypes); err != nil {
			return nil, fmt.Errorf("failed to decode event types for subscription %d: %w", sub.ID, err)
		}
		sub.Project = project.String
		sub.Active = active == 1
		sub.Description = desc.String
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
