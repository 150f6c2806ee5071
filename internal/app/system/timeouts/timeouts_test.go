package timeouts_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/planhub/internal/app/system/timeouts"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	defer timeouts.Reset()

	timeouts.Configure(timeouts.Config{Short: 7 * time.Second})

	if got := timeouts.Short(); got != 7*time.Second {
		t.Errorf("Short: got %v, want %v", got, 7*time.Second)
	}
	if got := timeouts.Medium(); got != timeouts.DefaultMedium {
		t.Errorf("Medium: got %v, want %v", got, timeouts.DefaultMedium)
	}
}

func TestReset(t *testing.T) {
	timeouts.Configure(timeouts.Config{Ping: time.Second, Long: time.Minute})
	timeouts.Reset()

	want := timeouts.Config{
		Ping:   timeouts.DefaultPing,
		Short:  timeouts.DefaultShort,
		Medium: timeouts.DefaultMedium,
		Long:   timeouts.DefaultLong,
	}
	if got := timeouts.Current(); got != want {
		t.Errorf("Current: got %+v, want %+v", got, want)
	}
}

func TestWithShort_SetsDeadline(t *testing.T) {
	defer timeouts.Reset()
	timeouts.Configure(timeouts.Config{Short: time.Second})

	ctx, cancel := timeouts.WithShort(context.Background())
	defer cancel()

	dl, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if remaining := time.Until(dl); remaining > time.Second {
		t.Errorf("deadline too far: %v", remaining)
	}
}
