package session

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet excludes glyphs that are easy to misread on a game screen:
// 0/O and 1/I. 32 characters keeps the scan of a random byte unbiased.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in a session code.
const CodeLength = 4

// maxCodeAttempts bounds collision retries before giving up. With a ~1M
// combination space, hitting this means the registry is close to saturated.
const maxCodeAttempts = 20

// generateCode draws a random session code and retries until the exists
// check clears. It does not reserve the code; the registry does that under
// its own lock so generation and insertion are atomic.
func generateCode(exists func(string) bool) (string, error) {
	buf := make([]byte, CodeLength)
	code := make([]byte, CodeLength)

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for i, b := range buf {
			code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
		}
		if !exists(string(code)) {
			return string(code), nil
		}
	}

	return "", ErrCodeSpaceExhausted
}
