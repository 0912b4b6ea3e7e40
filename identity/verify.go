package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	verifyAttempts = 4
	verifyDelay    = 100 * time.Millisecond
)

// readBack polls read until it returns want. Only the read is repeated; the mutation that
// produced the value is never retried.
func readBack(ctx context.Context, want string, read func() (string, error)) error {
	_, err := readBackUntil(ctx, read, func(got string) error {
		if got != want {
			return fmt.Errorf("read back %q, want %q", got, want)
		}

		return nil
	})

	return err
}

// readBackUntil polls read until accept takes its value and returns that value.
func readBackUntil(ctx context.Context, read func() (string, error), accept func(string) error) (string, error) {
	var got string
	err := retry.Do(func() error {
		var err error
		if got, err = read(); err != nil {
			return err
		}

		return accept(got)
	},
		retry.Context(ctx),
		retry.Attempts(verifyAttempts),
		retry.Delay(verifyDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("verify: %w", err)
	}

	return got, nil
}
