package types

import (
	"context"
)

// The key type is unexported to prevent collisions
type key int

const (
	// localeKey is the context key for the locale a permission check is made for
	localeKey key = iota
)

// LocaleFrom returns the locale attached to ctx, if any.
func LocaleFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(localeKey).(string)
	return v, ok && v != ""
}

func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey, locale)
}
