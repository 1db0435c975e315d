package alerting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fxwatch/internal/provider"
	"fxwatch/internal/storage"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// memAlerts is an in-memory AlertStore with the same claim semantics as the
// conditional UPDATE in the real repository.
type memAlerts struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*storage.Alert
}

func newMemAlerts(alerts ...storage.Alert) *memAlerts {
	m := &memAlerts{alerts: make(map[uuid.UUID]*storage.Alert)}
	for i := range alerts {
		a := alerts[i]
		m.alerts[a.ID] = &a
	}
	return m
}

func (m *memAlerts) InsertAlert(ctx context.Context, alert storage.Alert) (storage.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	alert.CreatedAt = time.Now().UTC()
	m.alerts[alert.ID] = &alert
	return alert, nil
}

func (m *memAlerts) ListEligibleAlerts(ctx context.Context) ([]storage.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Alert
	for _, a := range m.alerts {
		if a.Eligible() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAlerts) ListEligibleAlertsByUser(ctx context.Context, userID string) ([]storage.Alert, error) {
	all, _ := m.ListEligibleAlerts(ctx)
	var out []storage.Alert
	for _, a := range all {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAlerts) ListAlertsByUser(ctx context.Context, userID string) ([]storage.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Alert
	for _, a := range m.alerts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAlerts) ClaimTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, found := m.alerts[id]
	if !found || a.Notified {
		return false, nil
	}
	a.Notified = true
	a.TriggeredAt = &at
	return true, nil
}

func (m *memAlerts) UpdateAlertTarget(ctx context.Context, id uuid.UUID, target decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, found := m.alerts[id]; found {
		a.TargetRate = target
	}
	return nil
}

func (m *memAlerts) ReactivateAlert(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, found := m.alerts[id]; found {
		a.Active = true
		a.Notified = false
		a.TriggeredAt = nil
	}
	return nil
}

func (m *memAlerts) DeactivateAlert(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, found := m.alerts[id]; found {
		a.Active = false
	}
	return nil
}

func (m *memAlerts) get(id uuid.UUID) storage.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.alerts[id]
}

type memTriggers struct {
	mu     sync.Mutex
	events []storage.TriggerEvent
}

func (m *memTriggers) AppendTriggerEvent(ctx context.Context, event storage.TriggerEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

type memInbox struct {
	mu       sync.Mutex
	messages []storage.InboxMessage
}

func (m *memInbox) InsertInboxMessage(ctx context.Context, msg storage.InboxMessage) error {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	return nil
}

type memRecords struct {
	mu      sync.Mutex
	records []storage.NotificationRecord
}

func (m *memRecords) AppendNotification(ctx context.Context, record storage.NotificationRecord) error {
	m.mu.Lock()
	m.records = append(m.records, record)
	m.mu.Unlock()
	return nil
}

func (m *memRecords) ListRecentNotifications(ctx context.Context, limit int) ([]storage.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]storage.NotificationRecord(nil), m.records...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memPrefs struct {
	mu    sync.Mutex
	prefs map[string]storage.Preference
}

func (m *memPrefs) GetPreference(ctx context.Context, userID string) (storage.Preference, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pref, found := m.prefs[userID]
	return pref, found, nil
}

func (m *memPrefs) UpsertPreference(ctx context.Context, pref storage.Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prefs == nil {
		m.prefs = make(map[string]storage.Preference)
	}
	m.prefs[pref.UserID] = pref
	return nil
}

func staticQuote(buy string) provider.Quote {
	d, _ := decimal.NewFromString(buy)
	return provider.NewQuote("static", d, d)
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", value, err)
	}
	return d
}

func testAlert(t *testing.T, target, direction string) storage.Alert {
	t.Helper()
	dir, err := storage.ParseDirection(direction)
	if err != nil {
		t.Fatal(err)
	}
	return storage.Alert{
		ID:         uuid.New(),
		UserID:     "u1",
		Pair:       "USD_EUR",
		TargetRate: mustDecimal(t, target),
		Direction:  dir,
		Active:     true,
	}
}

func TestEngineTriggersAndNotifies(t *testing.T) {
	alert := testAlert(t, "0.80", "gte")
	alerts := newMemAlerts(alert)
	triggers := &memTriggers{}
	inbox := &memInbox{}
	records := &memRecords{}

	dispatcher := NewDispatcher(&memPrefs{}, records,
		[]Channel{NewInAppChannel(inbox, testLogger())}, testLogger())
	engine := NewEngine(alerts, triggers,
		StaticResolver{Quote: staticQuote("0.85")}, dispatcher, testLogger())

	summary := engine.CheckAll(context.Background())
	if summary.Checked != 1 || summary.Triggered != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}

	stored := alerts.get(alert.ID)
	if !stored.Notified || stored.TriggeredAt == nil {
		t.Fatal("triggered alert must be marked notified with a timestamp")
	}
	if len(triggers.events) != 1 {
		t.Fatalf("trigger events = %d, want 1", len(triggers.events))
	}
	if triggers.events[0].Rate.String() != "0.85" {
		t.Fatalf("trigger event rate = %s", triggers.events[0].Rate)
	}

	if len(inbox.messages) != 1 {
		t.Fatalf("inbox messages = %d, want 1", len(inbox.messages))
	}
	msg := inbox.messages[0]
	if msg.UserID != "u1" {
		t.Fatalf("inbox user = %q", msg.UserID)
	}
	if !strings.Contains(msg.Message, "USD/EUR") || !strings.Contains(msg.Message, "0.8500") {
		t.Fatalf("message should carry pair and rate: %q", msg.Message)
	}

	if len(records.records) != 1 || !records.records[0].Delivered {
		t.Fatalf("audit records = %+v", records.records)
	}
}

func TestEngineBelowTarget(t *testing.T) {
	alert := testAlert(t, "0.80", "gte")
	alerts := newMemAlerts(alert)

	engine := NewEngine(alerts, &memTriggers{},
		StaticResolver{Quote: staticQuote("0.75")}, nil, testLogger())

	summary := engine.CheckAll(context.Background())
	if summary.Checked != 1 || summary.Triggered != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if alerts.get(alert.ID).Notified {
		t.Fatal("untriggered alert must stay unnotified")
	}
}

func TestEngineDirections(t *testing.T) {
	cases := []struct {
		direction string
		target    string
		rate      string
		fires     bool
	}{
		{"gte", "0.85", "0.85", true},
		{"gte", "0.85", "0.84", false},
		{"lte", "0.85", "0.85", true},
		{"lte", "0.85", "0.86", false},
		{"strict_above", "0.85", "0.85", false},
		{"strict_above", "0.85", "0.86", true},
		{"strict_below", "0.85", "0.85", false},
		{"strict_below", "0.85", "0.84", true},
	}

	for _, tc := range cases {
		alerts := newMemAlerts(testAlert(t, tc.target, tc.direction))
		engine := NewEngine(alerts, nil,
			StaticResolver{Quote: staticQuote(tc.rate)}, nil, testLogger())

		summary := engine.CheckAll(context.Background())
		if fired := summary.Triggered == 1; fired != tc.fires {
			t.Fatalf("%s target=%s rate=%s: fired=%v, want %v",
				tc.direction, tc.target, tc.rate, fired, tc.fires)
		}
	}
}

func TestEngineSecondPassIdempotent(t *testing.T) {
	alerts := newMemAlerts(testAlert(t, "0.80", "gte"))
	engine := NewEngine(alerts, nil,
		StaticResolver{Quote: staticQuote("0.85")}, nil, testLogger())

	first := engine.CheckAll(context.Background())
	second := engine.CheckAll(context.Background())

	if first.Triggered != 1 {
		t.Fatalf("first pass = %+v", first)
	}
	if second.Checked != 0 || second.Triggered != 0 {
		t.Fatalf("notified alert must not be re-evaluated: %+v", second)
	}
}

func TestEngineResolverFailure(t *testing.T) {
	alert := testAlert(t, "0.80", "gte")
	alerts := newMemAlerts(alert)
	engine := NewEngine(alerts, nil,
		StaticResolver{Quote: provider.FailedQuote("static", "feed down")}, nil, testLogger())

	summary := engine.CheckAll(context.Background())
	if summary.Checked != 1 || summary.Triggered != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("errors = %v", summary.Errors)
	}
	if alerts.get(alert.ID).Notified {
		t.Fatal("alert without a rate must stay eligible for the next pass")
	}
}

func TestEngineSkipsIneligible(t *testing.T) {
	inactive := testAlert(t, "0.80", "gte")
	inactive.Active = false
	notified := testAlert(t, "0.80", "gte")
	notified.Notified = true

	engine := NewEngine(newMemAlerts(inactive, notified), nil,
		StaticResolver{Quote: staticQuote("0.85")}, nil, testLogger())

	summary := engine.CheckAll(context.Background())
	if summary.Checked != 0 {
		t.Fatalf("ineligible alerts must be skipped: %+v", summary)
	}
}

// claimDenied simulates losing the claim race to another worker.
type claimDenied struct {
	*memAlerts
}

func (c claimDenied) ClaimTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return false, nil
}

func TestEngineLosesClaimRace(t *testing.T) {
	alert := testAlert(t, "0.80", "gte")
	inbox := &memInbox{}
	dispatcher := NewDispatcher(&memPrefs{}, &memRecords{},
		[]Channel{NewInAppChannel(inbox, testLogger())}, testLogger())

	engine := NewEngine(claimDenied{newMemAlerts(alert)}, nil,
		StaticResolver{Quote: staticQuote("0.85")}, dispatcher, testLogger())

	summary := engine.CheckAll(context.Background())
	if summary.Triggered != 0 {
		t.Fatalf("losing the claim must not count a trigger: %+v", summary)
	}
	if len(inbox.messages) != 0 {
		t.Fatal("losing the claim must not dispatch")
	}
}

// claimErr simulates a storage failure during the claim.
type claimErr struct {
	*memAlerts
}

func (c claimErr) ClaimTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return false, errors.New("connection reset")
}

func TestEngineClaimError(t *testing.T) {
	alert := testAlert(t, "0.80", "gte")
	engine := NewEngine(claimErr{newMemAlerts(alert)}, nil,
		StaticResolver{Quote: staticQuote("0.85")}, nil, testLogger())

	summary := engine.CheckAll(context.Background())
	if summary.Triggered != 0 || len(summary.Errors) != 1 {
		t.Fatalf("claim failure must be collected, not raised: %+v", summary)
	}
}

func TestEngineCheckUserScoped(t *testing.T) {
	mine := testAlert(t, "0.80", "gte")
	other := testAlert(t, "0.80", "gte")
	other.UserID = "u2"

	alerts := newMemAlerts(mine, other)
	engine := NewEngine(alerts, nil,
		StaticResolver{Quote: staticQuote("0.85")}, nil, testLogger())

	summary := engine.CheckUser(context.Background(), "u1")
	if summary.Checked != 1 || summary.Triggered != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if alerts.get(other.ID).Notified {
		t.Fatal("other user's alert must be untouched")
	}
}

func TestEngineBatch(t *testing.T) {
	var seeded []storage.Alert
	for i := 0; i < 100; i++ {
		target := "0.80"
		if i%2 == 1 {
			target = "0.99"
		}
		seeded = append(seeded, testAlert(t, target, "gte"))
	}

	engine := NewEngine(newMemAlerts(seeded...), nil,
		StaticResolver{Quote: staticQuote("0.85")}, nil, testLogger())

	summary := engine.CheckAll(context.Background())
	if summary.Checked != 100 {
		t.Fatalf("checked = %d, want 100", summary.Checked)
	}
	if summary.Triggered != 50 {
		t.Fatalf("triggered = %d, want 50", summary.Triggered)
	}
}
