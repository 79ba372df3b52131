// Package translate provides text translation backends.
package translate

import "context"

// Provider translates plain text between language codes.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Translate returns text rendered in target. Codes are short translation
	// codes such as "en", "hi" or "zh-CN".
	Translate(ctx context.Context, text, source, target string) (string, error)
}
