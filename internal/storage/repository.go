package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertAlertSQL = `INSERT INTO alerts (
        id, user_id, pair, target_rate, direction, active, notified
    ) VALUES ($1,$2,$3,$4,$5,$6,FALSE)
    RETURNING id, user_id, pair, target_rate, direction, active, notified, created_at, triggered_at;`

	listEligibleAlertsSQL = `SELECT
        id, user_id, pair, target_rate, direction, active, notified, created_at, triggered_at
    FROM alerts
    WHERE active = TRUE AND notified = FALSE
    ORDER BY created_at;`

	listEligibleAlertsByUserSQL = `SELECT
        id, user_id, pair, target_rate, direction, active, notified, created_at, triggered_at
    FROM alerts
    WHERE active = TRUE AND notified = FALSE AND user_id = $1
    ORDER BY created_at;`

	listAlertsByUserSQL = `SELECT
        id, user_id, pair, target_rate, direction, active, notified, created_at, triggered_at
    FROM alerts
    WHERE user_id = $1
    ORDER BY created_at;`

	claimTriggeredSQL = `UPDATE alerts
    SET notified = TRUE, triggered_at = $2
    WHERE id = $1 AND notified = FALSE;`

	updateAlertTargetSQL = `UPDATE alerts SET target_rate = $2 WHERE id = $1;`

	reactivateAlertSQL = `UPDATE alerts
    SET active = TRUE, notified = FALSE, triggered_at = NULL
    WHERE id = $1;`

	deactivateAlertSQL = `UPDATE alerts SET active = FALSE WHERE id = $1;`

	getPreferenceSQL = `SELECT user_id, in_app_enabled, email_enabled, push_enabled
    FROM notification_preferences
    WHERE user_id = $1;`

	upsertPreferenceSQL = `INSERT INTO notification_preferences (
        user_id, in_app_enabled, email_enabled, push_enabled
    ) VALUES ($1,$2,$3,$4)
    ON CONFLICT (user_id) DO UPDATE
    SET in_app_enabled = EXCLUDED.in_app_enabled,
        email_enabled  = EXCLUDED.email_enabled,
        push_enabled   = EXCLUDED.push_enabled;`

	appendNotificationSQL = `INSERT INTO notification_records (
        id, alert_id, channel, title, message, delivered, error, sent_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	listRecentNotificationsSQL = `SELECT
        id, alert_id, channel, title, message, delivered, error, sent_at
    FROM notification_records
    ORDER BY sent_at DESC
    LIMIT $1;`

	insertInboxMessageSQL = `INSERT INTO inbox_messages (
        id, user_id, title, message
    ) VALUES ($1,$2,$3,$4);`

	listInboxMessagesSQL = `SELECT
        id, user_id, title, message, created_at
    FROM inbox_messages
    WHERE user_id = $1
    ORDER BY created_at DESC
    LIMIT $2;`

	appendTriggerEventSQL = `INSERT INTO alert_triggers (
        alert_id, rate, provider, recorded_at
    ) VALUES ($1,$2,$3,$4);`

	upsertRateSampleSQL = `INSERT INTO rate_samples (
        pair, provider, bucket_ts, buy_price, sell_price
    ) VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (pair, bucket_ts) DO UPDATE
    SET provider   = EXCLUDED.provider,
        buy_price  = EXCLUDED.buy_price,
        sell_price = EXCLUDED.sell_price;`

	listSamplesBetweenSQL = `SELECT
        pair, provider, bucket_ts, buy_price, sell_price, created_at
    FROM rate_samples
    WHERE pair = $1 AND bucket_ts >= $2 AND bucket_ts < $3
    ORDER BY bucket_ts;`

	listRecentSamplesSQL = `SELECT
        pair, provider, bucket_ts, buy_price, sell_price, created_at
    FROM rate_samples
    WHERE pair = $1
    ORDER BY bucket_ts DESC
    LIMIT $2;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertStore defines the alert persistence boundary used by the engine.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert Alert) (Alert, error)
	ListEligibleAlerts(ctx context.Context) ([]Alert, error)
	ListEligibleAlertsByUser(ctx context.Context, userID string) ([]Alert, error)
	ListAlertsByUser(ctx context.Context, userID string) ([]Alert, error)
	// ClaimTriggered flips notified false→true conditionally and reports
	// whether this caller won the claim. Two workers racing on the same
	// alert see exactly one true.
	ClaimTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	UpdateAlertTarget(ctx context.Context, id uuid.UUID, target decimal.Decimal) error
	ReactivateAlert(ctx context.Context, id uuid.UUID) error
	DeactivateAlert(ctx context.Context, id uuid.UUID) error
}

// PreferenceStore reads and writes per-user channel preferences.
type PreferenceStore interface {
	GetPreference(ctx context.Context, userID string) (Preference, bool, error)
	UpsertPreference(ctx context.Context, pref Preference) error
}

// NotificationStore appends and lists the notification audit trail.
type NotificationStore interface {
	AppendNotification(ctx context.Context, record NotificationRecord) error
	ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error)
}

// InboxStore persists in-app notifications.
type InboxStore interface {
	InsertInboxMessage(ctx context.Context, msg InboxMessage) error
}

// InboxReader lists a user's in-app notifications.
type InboxReader interface {
	ListInboxMessages(ctx context.Context, userID string, limit int) ([]InboxMessage, error)
}

// TriggerStore appends trigger audit events.
type TriggerStore interface {
	AppendTriggerEvent(ctx context.Context, event TriggerEvent) error
}

// RateSampleStore persists quote history for watched pairs.
type RateSampleStore interface {
	UpsertRateSample(ctx context.Context, sample RateSample) error
	ListSamplesBetween(ctx context.Context, pair string, from, to time.Time) ([]RateSample, error)
	ListRecentSamples(ctx context.Context, pair string, limit int) ([]RateSample, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates all persistence concerns behind one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertAlert persists a new alert. A zero ID is replaced with a fresh UUID.
func (s *Store) InsertAlert(ctx context.Context, alert Alert) (Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, err
	}

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.ID,
		alert.UserID,
		alert.Pair,
		alert.TargetRate.String(),
		string(alert.Direction),
		alert.Active,
	)
	stored, err := scanAlertRow(row)
	if err != nil {
		return Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	return stored, nil
}

// ListEligibleAlerts returns every active, not-yet-notified alert.
func (s *Store) ListEligibleAlerts(ctx context.Context) ([]Alert, error) {
	return s.queryAlerts(ctx, listEligibleAlertsSQL)
}

// ListEligibleAlertsByUser scopes the eligible set to one user.
func (s *Store) ListEligibleAlertsByUser(ctx context.Context, userID string) ([]Alert, error) {
	return s.queryAlerts(ctx, listEligibleAlertsByUserSQL, userID)
}

// ListAlertsByUser returns every alert owned by userID.
func (s *Store) ListAlertsByUser(ctx context.Context, userID string) ([]Alert, error) {
	return s.queryAlerts(ctx, listAlertsByUserSQL, userID)
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...any) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]Alert, 0)
	for rows.Next() {
		alert, scanErr := scanAlertRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// ClaimTriggered performs the conditional notified transition.
func (s *Store) ClaimTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cmdTag, execErr := pool.Exec(ctx, claimTriggeredSQL, id, at)
	if execErr != nil {
		return false, fmt.Errorf("claim triggered: %w", execErr)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// UpdateAlertTarget changes the threshold without touching notified state.
func (s *Store) UpdateAlertTarget(ctx context.Context, id uuid.UUID, target decimal.Decimal) error {
	return s.execOnAlert(ctx, updateAlertTargetSQL, id, target.String())
}

// ReactivateAlert re-arms a triggered or deactivated alert.
func (s *Store) ReactivateAlert(ctx context.Context, id uuid.UUID) error {
	return s.execOnAlert(ctx, reactivateAlertSQL, id)
}

// DeactivateAlert excludes the alert from evaluation.
func (s *Store) DeactivateAlert(ctx context.Context, id uuid.UUID) error {
	return s.execOnAlert(ctx, deactivateAlertSQL, id)
}

func (s *Store) execOnAlert(ctx context.Context, query string, id uuid.UUID, args ...any) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, query, append([]any{id}, args...)...)
	if execErr != nil {
		return fmt.Errorf("update alert: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetPreference loads a user's preference row; found=false means the caller
// should fall back to DefaultPreference.
func (s *Store) GetPreference(ctx context.Context, userID string) (Preference, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return Preference{}, false, err
	}

	var pref Preference
	scanErr := pool.QueryRow(ctx, getPreferenceSQL, userID).Scan(
		&pref.UserID,
		&pref.InApp,
		&pref.Email,
		&pref.Push,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return Preference{}, false, nil
	}
	if scanErr != nil {
		return Preference{}, false, fmt.Errorf("get preference: %w", scanErr)
	}
	return pref, true, nil
}

// UpsertPreference writes a user's preference row.
func (s *Store) UpsertPreference(ctx context.Context, pref Preference) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertPreferenceSQL, pref.UserID, pref.InApp, pref.Email, pref.Push); execErr != nil {
		return fmt.Errorf("upsert preference: %w", execErr)
	}
	return nil
}

// AppendNotification writes one audit row for a channel attempt.
func (s *Store) AppendNotification(ctx context.Context, record NotificationRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.SentAt.IsZero() {
		record.SentAt = time.Now().UTC()
	}

	var errMsg any
	if record.Error != "" {
		errMsg = record.Error
	}

	_, execErr := pool.Exec(ctx, appendNotificationSQL,
		record.ID,
		record.AlertID,
		record.Channel,
		record.Title,
		record.Message,
		record.Delivered,
		errMsg,
		record.SentAt,
	)
	if execErr != nil {
		return fmt.Errorf("append notification: %w", execErr)
	}
	return nil
}

// ListRecentNotifications lists the newest audit rows first.
func (s *Store) ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentNotificationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent notifications: %w", queryErr)
	}
	defer rows.Close()

	records := make([]NotificationRecord, 0, limit)
	for rows.Next() {
		var record NotificationRecord
		var errMsg sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.AlertID,
			&record.Channel,
			&record.Title,
			&record.Message,
			&record.Delivered,
			&errMsg,
			&record.SentAt,
		); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			record.Error = errMsg.String
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// InsertInboxMessage writes an in-app notification row.
func (s *Store) InsertInboxMessage(ctx context.Context, msg InboxMessage) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	if _, execErr := pool.Exec(ctx, insertInboxMessageSQL, msg.ID, msg.UserID, msg.Title, msg.Message); execErr != nil {
		return fmt.Errorf("insert inbox message: %w", execErr)
	}
	return nil
}

// ListInboxMessages lists a user's in-app notifications, newest first.
func (s *Store) ListInboxMessages(ctx context.Context, userID string, limit int) ([]InboxMessage, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listInboxMessagesSQL, userID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list inbox messages: %w", queryErr)
	}
	defer rows.Close()

	messages := make([]InboxMessage, 0, limit)
	for rows.Next() {
		var msg InboxMessage
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Title, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return messages, nil
}

// AppendTriggerEvent records the rate that tripped an alert.
func (s *Store) AppendTriggerEvent(ctx context.Context, event TriggerEvent) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	recordedAt := event.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, execErr := pool.Exec(ctx, appendTriggerEventSQL,
		event.AlertID,
		event.Rate.String(),
		event.Provider,
		recordedAt,
	)
	if execErr != nil {
		return fmt.Errorf("append trigger event: %w", execErr)
	}
	return nil
}

// UpsertRateSample persists or updates one observed quote bucket.
func (s *Store) UpsertRateSample(ctx context.Context, sample RateSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertRateSampleSQL,
		sample.Pair,
		sample.Provider,
		sample.Bucket,
		sample.Buy.String(),
		sample.Sell.String(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert rate sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples for a pair within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, pair string, from, to time.Time) ([]RateSample, error) {
	return s.querySamples(ctx, listSamplesBetweenSQL, pair, from, to)
}

// ListRecentSamples lists the most recent samples for a pair.
func (s *Store) ListRecentSamples(ctx context.Context, pair string, limit int) ([]RateSample, error) {
	return s.querySamples(ctx, listRecentSamplesSQL, pair, limit)
}

func (s *Store) querySamples(ctx context.Context, query string, args ...any) ([]RateSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query rate samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]RateSample, 0)
	for rows.Next() {
		var (
			sample  RateSample
			buyStr  string
			sellStr string
		)
		if err := rows.Scan(
			&sample.Pair,
			&sample.Provider,
			&sample.Bucket,
			&buyStr,
			&sellStr,
			&sample.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		sample.Buy, convErr = decimal.NewFromString(buyStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse buy price: %w", convErr)
		}
		sample.Sell, convErr = decimal.NewFromString(sellStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse sell price: %w", convErr)
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

type pgxRow interface {
	Scan(dest ...any) error
}

func scanAlertRow(row pgxRow) (Alert, error) {
	var (
		alert        Alert
		targetStr    string
		directionStr string
		triggeredAt  sql.NullTime
	)

	if err := row.Scan(
		&alert.ID,
		&alert.UserID,
		&alert.Pair,
		&targetStr,
		&directionStr,
		&alert.Active,
		&alert.Notified,
		&alert.CreatedAt,
		&triggeredAt,
	); err != nil {
		return Alert{}, err
	}

	target, err := decimal.NewFromString(targetStr)
	if err != nil {
		return Alert{}, fmt.Errorf("parse target rate: %w", err)
	}
	alert.TargetRate = target

	direction, err := ParseDirection(directionStr)
	if err != nil {
		return Alert{}, err
	}
	alert.Direction = direction

	if triggeredAt.Valid {
		value := triggeredAt.Time
		alert.TriggeredAt = &value
	}

	return alert, nil
}

var (
	_ AlertStore        = (*Store)(nil)
	_ PreferenceStore   = (*Store)(nil)
	_ NotificationStore = (*Store)(nil)
	_ InboxStore        = (*Store)(nil)
	_ InboxReader       = (*Store)(nil)
	_ TriggerStore      = (*Store)(nil)
	_ RateSampleStore   = (*Store)(nil)
	_ AdvisoryLocker    = (*Store)(nil)
)
