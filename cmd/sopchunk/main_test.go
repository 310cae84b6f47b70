package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"exit with message", cli.Exit("invalid configuration", 2), 2, "invalid configuration"},
		{"exit without message", cli.Exit("", 3), 3, ""},
		{"wrapped exit", fmt.Errorf("sync: %w", cli.Exit("sync failed", 1)), 1, "sync failed"},
		{"plain error", errors.New("boom"), 1, "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := exitStatus(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
