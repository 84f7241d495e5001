package scrutinylog

import "testing"

func TestNoopLogger_DoesNotPanic(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(Event{Category: CategoryError, Error: &ErrorEvent{Message: "boom"}})
}
