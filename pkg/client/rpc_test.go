package client

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), true},
		{"resource exhausted", status.Error(codes.ResourceExhausted, "busy"), true},
		{"aborted", status.Error(codes.Aborted, "conflict"), true},
		{"internal", status.Error(codes.Internal, "oops"), true},
		{"not found", status.Error(codes.NotFound, "missing"), false},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad"), false},
		{"deadline", context.DeadlineExceeded, false},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryableError(tc.err); got != tc.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestCallWithRetryGivesUp(t *testing.T) {
	c := &Client{config: DefaultConfig()}
	c.config.MaxRetries = 2
	c.config.RetryDelay = 0

	attempts := 0
	err := c.callWithRetry(context.Background(), "Probe", func(context.Context) error {
		attempts++
		return status.Error(codes.Unavailable, "still down")
	})
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestCallWithRetryStopsOnTerminalError(t *testing.T) {
	c := &Client{config: DefaultConfig()}
	c.config.RetryDelay = 0

	terminal := status.Error(codes.NotFound, "no such file")
	attempts := 0
	err := c.callWithRetry(context.Background(), "Probe", func(context.Context) error {
		attempts++
		return terminal
	})
	if !errors.Is(err, terminal) && err.Error() != terminal.Error() {
		t.Errorf("err = %v, want the terminal error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
