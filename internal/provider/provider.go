package provider

import (
	"context"
)

// FieldType enumerates the value kinds a config field can hold.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldBool     FieldType = "bool"
	FieldDuration FieldType = "duration"
)

// ConfigField describes one tunable parameter of a source for display
// purposes. It is metadata only and never drives behaviour.
type ConfigField struct {
	Label       string
	Type        FieldType
	Required    bool
	Secret      bool
	Description string
}

// Source is implemented by every rate adapter. FetchRate never returns an
// error: malformed pairs, unsupported pairs, and transport failures all come
// back as a failure Quote so callers branch on Quote.OK only.
type Source interface {
	Name() string
	FetchRate(ctx context.Context, pair string) Quote
	SupportsPair(pair string) bool
	ConfigSchema() map[string]ConfigField
}
