package alerting

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fxwatch/internal/metrics"
	"fxwatch/internal/storage"
)

// Dispatcher fans a triggered alert out to the user's enabled channels. Each
// attempt is isolated: one channel failing neither blocks the others nor
// rolls back the alert's notified state.
type Dispatcher struct {
	prefs    storage.PreferenceStore
	records  storage.NotificationStore
	channels []Channel
	logger   zerolog.Logger
}

// NewDispatcher wires preference and audit stores into a Dispatcher.
func NewDispatcher(prefs storage.PreferenceStore, records storage.NotificationStore, channels []Channel, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		prefs:    prefs,
		records:  records,
		channels: channels,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch renders the payload once and attempts every enabled channel,
// appending one audit record per attempt. Returns the number of attempts.
func (d *Dispatcher) Dispatch(ctx context.Context, alert storage.Alert, rate decimal.Decimal) int {
	pref := d.preference(ctx, alert.UserID)
	payload := BuildPayload(alert, rate)

	attempted := 0
	for _, channel := range d.channels {
		if !channelEnabled(pref, channel.Kind()) {
			continue
		}
		attempted++

		sendErr := channel.Send(ctx, payload)
		record := storage.NotificationRecord{
			AlertID:   alert.ID,
			Channel:   channel.Kind(),
			Title:     payload.Title,
			Message:   payload.Message,
			Delivered: sendErr == nil,
		}
		if sendErr != nil {
			record.Error = sendErr.Error()
			metrics.NotificationAttemptsTotal.WithLabelValues(channel.Kind(), "error").Inc()
			d.logger.Warn().Err(sendErr).
				Str("channel", channel.Kind()).
				Str("alert_id", alert.ID.String()).
				Msg("channel delivery failed")
		} else {
			metrics.NotificationAttemptsTotal.WithLabelValues(channel.Kind(), "ok").Inc()
		}

		if d.records != nil {
			if err := d.records.AppendNotification(ctx, record); err != nil {
				d.logger.Error().Err(err).
					Str("channel", channel.Kind()).
					Str("alert_id", alert.ID.String()).
					Msg("failed to append notification record")
			}
		}
	}

	d.logger.Info().
		Str("alert_id", alert.ID.String()).
		Str("pair", alert.Pair).
		Int("attempted", attempted).
		Msg("notification dispatched")
	return attempted
}

func (d *Dispatcher) preference(ctx context.Context, userID string) storage.Preference {
	if d.prefs == nil {
		return storage.DefaultPreference(userID)
	}
	pref, found, err := d.prefs.GetPreference(ctx, userID)
	if err != nil {
		d.logger.Warn().Err(err).Str("user_id", userID).Msg("preference lookup failed, using default")
		return storage.DefaultPreference(userID)
	}
	if !found {
		return storage.DefaultPreference(userID)
	}
	return pref
}

func channelEnabled(pref storage.Preference, kind string) bool {
	switch kind {
	case ChannelInApp:
		return pref.InApp
	case ChannelEmail:
		return pref.Email
	case ChannelPush:
		return pref.Push
	}
	return false
}
