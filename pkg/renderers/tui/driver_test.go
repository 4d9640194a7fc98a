package tui

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOptionMapping(t *testing.T) {
	options := []string{"admin", "member", "guest"}

	if got := optionIndex(options, "guest"); got != 2 {
		t.Fatalf("expected guest at 2, got %d", got)
	}
	if got := optionIndex(options, "owner"); got != -1 {
		t.Fatalf("expected -1 for unknown label, got %d", got)
	}
	if diff := cmp.Diff([]int{0, 2}, optionIndices(options, "guest", "owner", "admin")); diff != "" {
		t.Fatalf("indices mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"member", "admin"}, optionLabels(options, 1, 7, -1, 0)); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestAnswerPick(t *testing.T) {
	if got := (Answer{}).Pick(); got != -1 {
		t.Fatalf("expected -1 for empty answer, got %d", got)
	}
	if got := (Answer{Picks: []int{3, 1}}).Pick(); got != 3 {
		t.Fatalf("expected first pick, got %d", got)
	}
}

func TestSurveyDriverHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewSurveyDriver(&bytesSink{})

	if _, err := d.Ask(ctx, Question{Label: "Name"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Ask, got %v", err)
	}
	if err := d.Info(ctx, "note"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Info, got %v", err)
	}
}

type bytesSink struct{ lines []string }

func (b *bytesSink) Write(p []byte) (int, error) {
	b.lines = append(b.lines, string(p))
	return len(p), nil
}

func TestSurveyDriverInfoWritesLine(t *testing.T) {
	sink := &bytesSink{}
	d := NewSurveyDriver(sink)

	if err := d.Info(context.Background(), "! required"); err != nil {
		t.Fatalf("info: %v", err)
	}
	if diff := cmp.Diff([]string{"! required\n"}, sink.lines); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}
