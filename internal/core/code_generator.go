package core

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

// Order codes use an alphabet without 0/O/1/I to stay readable over the phone.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 8

	defaultCodeAttempts = 3
	defaultCodeBackoff  = 75 * time.Millisecond
)

// ExistsFunc reports whether an order code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// CodeGenerator produces unique human-readable order codes. Candidates are
// checked against the store before use; because the store also enforces a
// unique constraint, a candidate can still lose a race between the check and
// the insert. Both failure modes are absorbed by the same bounded
// retry-with-backoff loop.
type CodeGenerator struct {
	exists      ExistsFunc
	maxAttempts int
	baseBackoff time.Duration

	// injectable for tests
	newCandidate func() string
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewCodeGenerator(exists ExistsFunc) *CodeGenerator {
	return &CodeGenerator{
		exists:       exists,
		maxAttempts:  defaultCodeAttempts,
		baseBackoff:  defaultCodeBackoff,
		newCandidate: randomCode,
		sleep:        sleepCtx,
	}
}

// Reserve generates a candidate code, verifies it is free, and hands it to
// insert, which must perform the durable write that claims the code. A
// detected collision or a unique-violation raised by insert triggers a new
// candidate after an increasing backoff, up to the attempt bound; exceeding
// the bound returns ErrExhaustedRetries. Any other insert error is returned
// as-is and consumes no further attempts.
func (g *CodeGenerator) Reserve(ctx context.Context, insert func(code string) error) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := g.sleep(ctx, g.backoff(attempt)); err != nil {
				return "", err
			}
		}

		code := g.newCandidate()

		taken, err := g.exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check order code %s: %w", code, err)
		}
		if taken {
			continue
		}

		err = insert(code)
		if err == nil {
			return code, nil
		}
		if IsUniqueViolation(err) {
			// Lost the check-then-insert race; retry with a fresh candidate.
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("gave up after %d attempts: %w", g.maxAttempts, ErrExhaustedRetries)
}

// backoff doubles per attempt: base, 2*base, 4*base, ...
func (g *CodeGenerator) backoff(attempt int) time.Duration {
	return g.baseBackoff << (attempt - 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// randomCode draws codeLength characters uniformly from codeAlphabet.
func randomCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("rand.Read: %v", err))
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// FormatOrderNumber renders the display form of an order code.
func FormatOrderNumber(code string) string {
	return "OS-" + code
}
