package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the comparator an alert applies to the current rate.
type Direction string

const (
	DirectionGTE         Direction = "gte"
	DirectionLTE         Direction = "lte"
	DirectionStrictAbove Direction = "strict_above"
	DirectionStrictBelow Direction = "strict_below"
)

// ParseDirection validates a persisted or user-supplied direction string.
func ParseDirection(value string) (Direction, error) {
	switch Direction(value) {
	case DirectionGTE, DirectionLTE, DirectionStrictAbove, DirectionStrictBelow:
		return Direction(value), nil
	}
	return "", fmt.Errorf("unknown direction %q", value)
}

// Satisfied reports whether current crosses target under this comparator.
func (d Direction) Satisfied(current, target decimal.Decimal) bool {
	switch d {
	case DirectionGTE:
		return current.GreaterThanOrEqual(target)
	case DirectionLTE:
		return current.LessThanOrEqual(target)
	case DirectionStrictAbove:
		return current.GreaterThan(target)
	case DirectionStrictBelow:
		return current.LessThan(target)
	}
	return false
}

// Symbol returns the comparator glyph used in notification messages.
func (d Direction) Symbol() string {
	switch d {
	case DirectionGTE:
		return ">="
	case DirectionLTE:
		return "<="
	case DirectionStrictAbove:
		return ">"
	case DirectionStrictBelow:
		return "<"
	}
	return "?"
}

// Rising reports whether the comparator watches for upward movement.
func (d Direction) Rising() bool {
	return d == DirectionGTE || d == DirectionStrictAbove
}

// Alert is a persisted user-defined rate threshold. Notified=true implies
// TriggeredAt is set; an alert is eligible for evaluation iff it is active
// and not yet notified.
type Alert struct {
	ID          uuid.UUID
	UserID      string
	Pair        string
	TargetRate  decimal.Decimal
	Direction   Direction
	Active      bool
	Notified    bool
	CreatedAt   time.Time
	TriggeredAt *time.Time
}

// Eligible reports whether the alert is subject to evaluation.
func (a Alert) Eligible() bool {
	return a.Active && !a.Notified
}

// Preference is a user's per-channel notification opt-in row.
type Preference struct {
	UserID string
	InApp  bool
	Email  bool
	Push   bool
}

// DefaultPreference is applied when no row exists for the user: in-app only.
func DefaultPreference(userID string) Preference {
	return Preference{UserID: userID, InApp: true}
}

// NotificationRecord is one append-only audit row per channel attempt,
// written whether or not delivery succeeded.
type NotificationRecord struct {
	ID        uuid.UUID
	AlertID   uuid.UUID
	Channel   string
	Title     string
	Message   string
	Delivered bool
	Error     string
	SentAt    time.Time
}

// InboxMessage is a persisted in-app notification.
type InboxMessage struct {
	ID        uuid.UUID
	UserID    string
	Title     string
	Message   string
	CreatedAt time.Time
}

// TriggerEvent records the rate that tripped an alert.
type TriggerEvent struct {
	ID         int64
	AlertID    uuid.UUID
	Rate       decimal.Decimal
	Provider   string
	RecordedAt time.Time
}

// RateSample is one observed quote for a watched pair, keyed by bucket.
type RateSample struct {
	Pair      string
	Provider  string
	Bucket    time.Time
	Buy       decimal.Decimal
	Sell      decimal.Decimal
	CreatedAt time.Time
}
