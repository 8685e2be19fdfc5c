package log

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestAdapter(buf *bytes.Buffer) *SlogAdapter {
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogAdapter(slog.New(h))
}

func TestSlogAdapterCommand(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	pt := 2 * time.Millisecond
	a.Log(Event{
		TimerID:      "t1",
		ConnectionID: "c1",
		Direction:    DirectionIn,
		Layer:        LayerGateway,
		Category:     CategoryCommand,
		Command:      &CommandEvent{Action: "set", Value: "000010", Result: "invalid state transition", ProcessingTime: &pt},
	})

	out := buf.String()
	assert.Contains(t, out, "timer_id=t1")
	assert.Contains(t, out, "conn_id=c1")
	assert.Contains(t, out, "action=set")
	assert.Contains(t, out, "value=000010")
	assert.Contains(t, out, "processing_time=2ms")
}

func TestSlogAdapterSnapshotAndState(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	a.Log(Event{Category: CategorySnapshot, Snapshot: &SnapshotEvent{Remaining: "000002", Status: "rolling", Trigger: TriggerTick}})
	a.Log(Event{Category: CategoryState, StateChange: &StateChangeEvent{Entity: StateEntityTimer, OldState: "rolling", NewState: "finished", Reason: "countdown elapsed"}})
	a.Log(Event{Category: CategoryError, Error: &ErrorEventData{Layer: LayerGateway, Message: "queue full", Context: "send"}})

	out := buf.String()
	assert.Contains(t, out, "timer_state=000002")
	assert.Contains(t, out, "trigger=TICK")
	assert.Contains(t, out, "new_state=finished")
	assert.Contains(t, out, "error_msg=\"queue full\"")
	assert.Contains(t, out, "error_context=send")
}

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiLogger(newTestAdapter(&a), nil, newTestAdapter(&b))

	m.Log(Event{TimerID: "x", Category: CategoryState, StateChange: &StateChangeEvent{NewState: "stopped"}})

	assert.Contains(t, a.String(), "timer_id=x")
	assert.Contains(t, b.String(), "timer_id=x")
}
