package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClockNow(t *testing.T) {
	before := time.Now()
	got := Real().Now()
	assert.False(t, got.Before(before))
}

func TestRealTickerFires(t *testing.T) {
	tk := Real().NewTicker(5 * time.Millisecond)
	defer tk.Stop()

	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	f.Advance(1500 * time.Millisecond)
	assert.Equal(t, start.Add(1500*time.Millisecond), f.Now())
}

func TestFakeTickerFiresOnDeadline(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	defer tk.Stop()

	f.Advance(999 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired before its deadline")
	default:
	}

	f.Advance(time.Millisecond)
	select {
	case got := <-tk.C():
		assert.Equal(t, time.Unix(1, 0), got)
	default:
		t.Fatal("ticker did not fire at its deadline")
	}
}

func TestFakeTickerDropsUnreadTicks(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	defer tk.Stop()

	f.Advance(time.Second)
	f.Advance(time.Second)

	<-tk.C()
	select {
	case <-tk.C():
		t.Fatal("expected second tick to be dropped")
	default:
	}
}

func TestFakeTickerStop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	require.Equal(t, 1, f.TickerCount())

	tk.Stop()
	tk.Stop()
	assert.Equal(t, 0, f.TickerCount())

	f.Advance(2 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeSetDoesNotFire(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	defer tk.Stop()

	f.Set(time.Unix(10, 0))
	assert.Equal(t, time.Unix(10, 0), f.Now())
	select {
	case <-tk.C():
		t.Fatal("Set should not fire tickers")
	default:
	}
}
