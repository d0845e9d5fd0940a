package log

import "context"

type scopeKey struct{}

// scope is the immutable log state carried by a context. Each With* call
// stores a copy, so parents never see fields added by children.
type scope struct {
	requestID string
	fields    map[string]any
}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	s := scopeFrom(ctx)
	s.requestID = id
	return context.WithValue(ctx, scopeKey{}, s)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).requestID
}

// WithFields returns a context carrying the existing fields plus the given
// pairs. Later keys win.
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	s := scopeFrom(ctx)
	fields := make(map[string]any, len(s.fields)+len(keysAndValues)/2)
	for k, v := range s.fields {
		fields[k] = v
	}
	mergePairs(fields, keysAndValues)
	s.fields = fields
	return context.WithValue(ctx, scopeKey{}, s)
}

// FieldsFromContext returns the fields stored in ctx, or nil.
func FieldsFromContext(ctx context.Context) map[string]any {
	return scopeFrom(ctx).fields
}
