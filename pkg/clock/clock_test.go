package clock

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFakeAfterFuncFiresInDeadlineOrder(t *testing.T) {
	t.Parallel()

	c := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	var fired []string
	c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "late") })
	c.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early") })
	stopped := c.AfterFunc(200*time.Millisecond, func() { fired = append(fired, "stopped") })

	if !stopped.Stop() {
		t.Fatalf("expected Stop to prevent the call")
	}
	if c.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", c.Pending())
	}

	c.Advance(150 * time.Millisecond)
	c.Advance(200 * time.Millisecond)

	if diff := cmp.Diff([]string{"early", "late"}, fired); diff != "" {
		t.Fatalf("fired mismatch (-want +got):\n%s", diff)
	}
	if stopped.Stop() {
		t.Fatalf("second Stop should report false")
	}
}
