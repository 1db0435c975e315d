package alerting

import (
	"context"
	"errors"
	"testing"

	"fxwatch/internal/storage"
)

// failingChannel always errors out on Send.
type failingChannel struct {
	kind string
}

func (f failingChannel) Kind() string { return f.kind }

func (f failingChannel) Send(ctx context.Context, payload Payload) error {
	return errors.New("smtp unreachable")
}

func allChannels(inbox *memInbox) []Channel {
	return []Channel{
		NewInAppChannel(inbox, testLogger()),
		NewEmailChannel(testLogger()),
		NewPushChannel(testLogger()),
	}
}

func TestDispatcherDefaultPreferenceInAppOnly(t *testing.T) {
	inbox := &memInbox{}
	records := &memRecords{}
	d := NewDispatcher(&memPrefs{}, records, allChannels(inbox), testLogger())

	alert := testAlert(t, "0.80", "gte")
	attempted := d.Dispatch(context.Background(), alert, mustDecimal(t, "0.85"))

	if attempted != 1 {
		t.Fatalf("attempted = %d, want in-app only", attempted)
	}
	if len(inbox.messages) != 1 {
		t.Fatalf("inbox messages = %d", len(inbox.messages))
	}
	if len(records.records) != 1 || records.records[0].Channel != ChannelInApp {
		t.Fatalf("records = %+v", records.records)
	}
}

func TestDispatcherHonorsPreferences(t *testing.T) {
	prefs := &memPrefs{}
	_ = prefs.UpsertPreference(context.Background(), storage.Preference{
		UserID: "u1", InApp: true, Email: true, Push: true,
	})

	inbox := &memInbox{}
	records := &memRecords{}
	d := NewDispatcher(prefs, records, allChannels(inbox), testLogger())

	attempted := d.Dispatch(context.Background(), testAlert(t, "0.80", "gte"), mustDecimal(t, "0.85"))
	if attempted != 3 {
		t.Fatalf("attempted = %d, want all three channels", attempted)
	}
	if len(records.records) != 3 {
		t.Fatalf("records = %d, want one audit row per attempt", len(records.records))
	}
}

func TestDispatcherAllChannelsDisabled(t *testing.T) {
	prefs := &memPrefs{}
	_ = prefs.UpsertPreference(context.Background(), storage.Preference{UserID: "u1"})

	inbox := &memInbox{}
	d := NewDispatcher(prefs, &memRecords{}, allChannels(inbox), testLogger())

	if attempted := d.Dispatch(context.Background(), testAlert(t, "0.80", "gte"), mustDecimal(t, "0.85")); attempted != 0 {
		t.Fatalf("attempted = %d, want 0", attempted)
	}
	if len(inbox.messages) != 0 {
		t.Fatal("disabled channels must not deliver")
	}
}

func TestDispatcherChannelFailureIsolated(t *testing.T) {
	prefs := &memPrefs{}
	_ = prefs.UpsertPreference(context.Background(), storage.Preference{
		UserID: "u1", InApp: true, Email: true,
	})

	inbox := &memInbox{}
	records := &memRecords{}
	channels := []Channel{
		failingChannel{kind: ChannelEmail},
		NewInAppChannel(inbox, testLogger()),
	}
	d := NewDispatcher(prefs, records, channels, testLogger())

	attempted := d.Dispatch(context.Background(), testAlert(t, "0.80", "gte"), mustDecimal(t, "0.85"))
	if attempted != 2 {
		t.Fatalf("attempted = %d, want 2", attempted)
	}
	if len(inbox.messages) != 1 {
		t.Fatal("in-app delivery must survive the email failure")
	}

	if len(records.records) != 2 {
		t.Fatalf("records = %d, want audit rows for both attempts", len(records.records))
	}
	for _, record := range records.records {
		switch record.Channel {
		case ChannelEmail:
			if record.Delivered || record.Error == "" {
				t.Fatalf("failed attempt must be recorded as such: %+v", record)
			}
		case ChannelInApp:
			if !record.Delivered || record.Error != "" {
				t.Fatalf("successful attempt recorded wrong: %+v", record)
			}
		}
	}
}

func TestBuildPayload(t *testing.T) {
	alert := testAlert(t, "0.80", "gte")
	payload := BuildPayload(alert, mustDecimal(t, "0.85"))

	if payload.Title != "Rate alert: USD/EUR" {
		t.Fatalf("title = %q", payload.Title)
	}
	want := "📈 USD/EUR reached 0.8500 (target >= 0.8000)"
	if payload.Message != want {
		t.Fatalf("message = %q, want %q", payload.Message, want)
	}

	falling := testAlert(t, "0.80", "strict_below")
	payload = BuildPayload(falling, mustDecimal(t, "0.75"))
	want = "📉 USD/EUR reached 0.7500 (target < 0.8000)"
	if payload.Message != want {
		t.Fatalf("message = %q, want %q", payload.Message, want)
	}
}
