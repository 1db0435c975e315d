package alerting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fxwatch/internal/provider"
	"fxwatch/internal/storage"
)

// Payload is the rendered notification handed to every channel.
type Payload struct {
	Alert   storage.Alert
	Rate    decimal.Decimal
	Title   string
	Message string
}

// BuildPayload renders the title and message for a triggered alert.
func BuildPayload(alert storage.Alert, rate decimal.Decimal) Payload {
	pair := provider.DisplayPair(alert.Pair)

	icon := "📉"
	if alert.Direction.Rising() {
		icon = "📈"
	}

	title := fmt.Sprintf("Rate alert: %s", pair)
	message := fmt.Sprintf("%s %s reached %s (target %s %s)",
		icon,
		pair,
		rate.StringFixed(4),
		alert.Direction.Symbol(),
		alert.TargetRate.StringFixed(4),
	)

	return Payload{Alert: alert, Rate: rate, Title: title, Message: message}
}
