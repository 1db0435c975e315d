package alerting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"fxwatch/internal/storage"
)

const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// Channel delivers one rendered notification. Implementations are best
// effort: an error is recorded and logged, never escalated.
type Channel interface {
	Kind() string
	Send(ctx context.Context, payload Payload) error
}

// InAppChannel writes notifications to the persisted inbox.
type InAppChannel struct {
	inbox  storage.InboxStore
	logger zerolog.Logger
}

// NewInAppChannel wires the inbox store into a channel.
func NewInAppChannel(inbox storage.InboxStore, logger zerolog.Logger) *InAppChannel {
	return &InAppChannel{
		inbox:  inbox,
		logger: logger.With().Str("component", "channel_in_app").Logger(),
	}
}

// Kind implements Channel.
func (c *InAppChannel) Kind() string { return ChannelInApp }

// Send implements Channel.
func (c *InAppChannel) Send(ctx context.Context, payload Payload) error {
	if c.inbox == nil {
		return fmt.Errorf("inbox store not configured")
	}
	return c.inbox.InsertInboxMessage(ctx, storage.InboxMessage{
		UserID:  payload.Alert.UserID,
		Title:   payload.Title,
		Message: payload.Message,
	})
}

// EmailChannel logs delivery intent. SMTP integration is out of scope; the
// audit record is still written by the dispatcher.
type EmailChannel struct {
	logger zerolog.Logger
}

// NewEmailChannel constructs the email stub.
func NewEmailChannel(logger zerolog.Logger) *EmailChannel {
	return &EmailChannel{logger: logger.With().Str("component", "channel_email").Logger()}
}

// Kind implements Channel.
func (c *EmailChannel) Kind() string { return ChannelEmail }

// Send implements Channel.
func (c *EmailChannel) Send(ctx context.Context, payload Payload) error {
	c.logger.Info().
		Str("user_id", payload.Alert.UserID).
		Str("title", payload.Title).
		Msg("email delivery requested")
	return nil
}

// PushChannel logs delivery intent. FCM integration is out of scope.
type PushChannel struct {
	logger zerolog.Logger
}

// NewPushChannel constructs the push stub.
func NewPushChannel(logger zerolog.Logger) *PushChannel {
	return &PushChannel{logger: logger.With().Str("component", "channel_push").Logger()}
}

// Kind implements Channel.
func (c *PushChannel) Kind() string { return ChannelPush }

// Send implements Channel.
func (c *PushChannel) Send(ctx context.Context, payload Payload) error {
	c.logger.Info().
		Str("user_id", payload.Alert.UserID).
		Str("title", payload.Title).
		Msg("push delivery requested")
	return nil
}

var (
	_ Channel = (*InAppChannel)(nil)
	_ Channel = (*EmailChannel)(nil)
	_ Channel = (*PushChannel)(nil)
)
