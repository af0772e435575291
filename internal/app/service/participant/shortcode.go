package participant

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	shortCodeAttempts      = 5
	shortCodeDigits        = 4
	shortCodeFallbackDigit = 5
)

// ExistsFunc reports whether a short code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// ShortCodePrefix keeps the first three ASCII letters of the last name, uppercased, padded with X.
func ShortCodePrefix(lastName string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(lastName) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	prefix := b.String()
	return prefix + strings.Repeat("X", 3-len(prefix))
}

// NormalizeShortCode is applied to user input before lookup.
func NormalizeShortCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randomDigits(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// GenerateShortCode returns PREFIX-DDDD, retrying on collision. After five collisions it returns
// PREFIX-DDDDD unchecked; the unique index on insert is the final arbiter.
func GenerateShortCode(ctx context.Context, lastName string, exists ExistsFunc) (string, error) {
	return generateShortCode(ctx, lastName, exists, randomDigits)
}

func generateShortCode(ctx context.Context, lastName string, exists ExistsFunc, digits func(int) string) (string, error) {
	prefix := ShortCodePrefix(lastName)
	for i := 0; i < shortCodeAttempts; i++ {
		code := prefix + "-" + digits(shortCodeDigits)
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check short code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return prefix + "-" + digits(shortCodeFallbackDigit), nil
}
