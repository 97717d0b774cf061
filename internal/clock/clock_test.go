package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAfterAdvancesTime(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := NewFake(start)

	fired := <-fake.After(21 * time.Second)

	assert.Equal(t, start.Add(21*time.Second), fired)
	assert.Equal(t, start.Add(21*time.Second), fake.Now())
}

func TestFakeTickerFiresOnAdvance(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := NewFake(start)
	ticker := fake.NewTicker(time.Minute)

	fake.Advance(30 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its period")
	default:
	}

	fake.Advance(30 * time.Second)
	select {
	case tick := <-ticker.C():
		assert.Equal(t, start.Add(time.Minute), tick)
	default:
		t.Fatal("ticker did not fire")
	}

	ticker.Stop()
	fake.Advance(time.Minute)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeSetDoesNotFire(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	ticker := fake.NewTicker(time.Second)
	fake.Set(time.Unix(100, 0))

	select {
	case <-ticker.C():
		t.Fatal("Set should not fire tickers")
	default:
	}
	assert.Equal(t, time.Unix(100, 0), fake.Now())
}
