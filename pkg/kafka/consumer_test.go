package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min := 100 * time.Millisecond
	max := 2 * time.Second

	for attempt := 1; attempt <= 20; attempt++ {
		for i := 0; i < 50; i++ {
			got := backoffWithJitter(min, max, attempt)
			if got <= 0 {
				t.Fatalf("attempt %d: backoff %s <= 0", attempt, got)
			}
			if got > max {
				t.Fatalf("attempt %d: backoff %s exceeds cap %s", attempt, got, max)
			}
		}
	}
}

func TestBackoffWithJitterGrowsThenCaps(t *testing.T) {
	min := 100 * time.Millisecond
	max := 800 * time.Millisecond

	// Jitter subtracts at most half, so the floor of attempt n is half of
	// the exponential base. Attempt 1 stays under attempt 4's floor.
	for i := 0; i < 50; i++ {
		first := backoffWithJitter(min, max, 1)
		if first > min {
			t.Fatalf("attempt 1 backoff %s above base %s", first, min)
		}
		fourth := backoffWithJitter(min, max, 4)
		if fourth <= max/2 {
			t.Fatalf("attempt 4 backoff %s should be above %s", fourth, max/2)
		}
	}

	// Far attempts must not overflow into negatives; they pin to the cap.
	if got := backoffWithJitter(min, max, 60); got <= 0 || got > max {
		t.Fatalf("attempt 60 backoff %s out of (0, %s]", got, max)
	}
}

func TestBackoffWithJitterDegenerateInputs(t *testing.T) {
	if got := backoffWithJitter(0, 0, 1); got <= 0 {
		t.Fatalf("zero config backoff %s, want positive fallback", got)
	}
	if got := backoffWithJitter(time.Second, time.Millisecond, 1); got > time.Second {
		t.Fatalf("max below min: backoff %s exceeds min", got)
	}
}

func TestStartOffset(t *testing.T) {
	if got := startOffset("latest"); got != kafka.LastOffset {
		t.Errorf("latest -> %d, want LastOffset", got)
	}
	if got := startOffset("earliest"); got != kafka.FirstOffset {
		t.Errorf("earliest -> %d, want FirstOffset", got)
	}
	if got := startOffset(""); got != kafka.FirstOffset {
		t.Errorf("default -> %d, want FirstOffset", got)
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestRunRequiresHandler(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Run(t.Context()); err == nil {
		t.Fatal("expected error without a registered handler")
	}
}
