package internal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestShowProgress(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		message string
		fn      func() error
		wantErr bool
	}{
		{
			name:    "successful function",
			message: "Testing",
			fn:      func() error { return nil },
		},
		{
			name:    "function with error",
			message: "Testing error",
			fn:      func() error { return errors.New("test error") },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ShowProgress(ctx, tt.message, tt.fn)
			if (err != nil) != tt.wantErr {
				t.Errorf("ShowProgress() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestShowSpinner(t *testing.T) {
	var buf bytes.Buffer
	err := showSpinner(context.Background(), &buf, "Waiting", func() error {
		time.Sleep(150 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("showSpinner() error = %v", err)
	}
	if !strings.Contains(buf.String(), "✓") || !strings.Contains(buf.String(), "Waiting") {
		t.Errorf("showSpinner() output = %q", buf.String())
	}
}

func TestShowSpinner_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	err := showSpinner(ctx, &buf, "Slow", func() error {
		time.Sleep(300 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("showSpinner() error = %v, want deadline exceeded", err)
	}
}

func TestShowProgressWithSteps(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		steps   []ProgressStep
		wantErr bool
		wantRan int
	}{
		{
			name:    "successful steps",
			steps:   []ProgressStep{{Message: "Step 1"}, {Message: "Step 2"}},
			wantRan: 2,
		},
		{
			name:    "stops at first error",
			steps:   []ProgressStep{{Message: "Step 1"}, {Message: "Step 2"}, {Message: "Step 3"}},
			wantErr: true,
			wantRan: 2,
		},
		{
			name:  "empty steps",
			steps: []ProgressStep{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := 0
			for i := range tt.steps {
				tt.steps[i].Fn = func() error {
					ran++
					if tt.wantErr && i == 1 {
						return errors.New("step error")
					}
					return nil
				}
			}

			err := ShowProgressWithSteps(ctx, tt.steps)
			if (err != nil) != tt.wantErr {
				t.Errorf("ShowProgressWithSteps() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ran != tt.wantRan {
				t.Errorf("ran %d steps, want %d", ran, tt.wantRan)
			}
		})
	}
}

func TestPrintHelpers_NonTerminal(t *testing.T) {
	tests := []struct {
		name string
		fn   func(w *bytes.Buffer)
		want string
	}{
		{"success", func(w *bytes.Buffer) { PrintSuccess(w, "done") }, "done\n"},
		{"info", func(w *bytes.Buffer) { PrintInfo(w, "note") }, "note\n"},
		{"warning", func(w *bytes.Buffer) { PrintWarning(w, "careful") }, "WARNING: careful\n"},
		{"error", func(w *bytes.Buffer) { PrintError(w, "broken") }, "ERROR: broken\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.fn(&buf)
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestTerminalWidth_Fallback(t *testing.T) {
	var buf bytes.Buffer
	if got := TerminalWidth(&buf, 72); got != 72 {
		t.Errorf("TerminalWidth() = %d, want 72", got)
	}
}
