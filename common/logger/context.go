package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with the carrying context.
type LogFields struct {
	QuestionID *int64
	ReplyID    *int64
	Backend    string // storage backend name, e.g. "remote", "local"
	Component  string // e.g. "qna.store.engine"
}

// WithLogFields enriches ctx. Newer non-empty values win over existing ones.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields stored in ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.QuestionID != nil {
		result.QuestionID = next.QuestionID
	}
	if next.ReplyID != nil {
		result.ReplyID = next.ReplyID
	}
	if next.Backend != "" {
		result.Backend = next.Backend
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr returns a pointer to v.
// Useful inline: logger.WithLogFields(ctx, logger.LogFields{QuestionID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}
