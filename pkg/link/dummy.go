package link

import "sync"

// dummyChannel is the shared loopback buffer pair between the two ends of a
// DummyLink (or ThreadSafeDummyLink) pairing.
type dummyChannel struct {
	mu   sync.Mutex
	aToB [][]byte
	bToA [][]byte
}

// DummyLink is an in-process loopback transport used by tests and by the
// simulated device: two DummyLink values created with NewDummyLinkPair
// exchange frames directly, with no network involved. A plain DummyLink is
// not safe for concurrent use from two goroutines driving opposite ends;
// use a pair from NewThreadSafeDummyLinkPair for that.
type DummyLink struct {
	ch     *dummyChannel
	isA    bool
	open   bool
	locked bool
}

// NewDummyLinkPair creates two connected DummyLink ends. Neither is safe to
// drive from a goroutine other than its owner.
func NewDummyLinkPair() (a, b *DummyLink) {
	ch := &dummyChannel{}
	return &DummyLink{ch: ch, isA: true}, &DummyLink{ch: ch, isA: false}
}

// NewThreadSafeDummyLinkPair creates two connected DummyLink ends, both
// guarding the shared buffer with a mutex so each end may be driven from its
// own goroutine - the simulated device's usual arrangement.
func NewThreadSafeDummyLinkPair() (a, b *DummyLink) {
	ch := &dummyChannel{}
	return &DummyLink{ch: ch, isA: true, locked: true}, &DummyLink{ch: ch, isA: false, locked: true}
}

// Open marks the link open. The pairing is already established at
// construction time, so cfg is ignored.
func (l *DummyLink) Open(any) error {
	l.open = true
	return nil
}

// Close marks the link closed. Buffered-but-unread frames stay in the
// shared buffer; Receive reports nothing while the link is closed.
func (l *DummyLink) Close() error {
	l.open = false
	return nil
}

// IsOpen reports whether Open has been called without a subsequent Close.
func (l *DummyLink) IsOpen() bool {
	return l.open
}

// Send appends frame to the outbox the peer reads from.
func (l *DummyLink) Send(frame []byte) error {
	if !l.open {
		return ErrNotOpen
	}
	buf := append([]byte(nil), frame...)
	if l.locked {
		l.ch.mu.Lock()
		defer l.ch.mu.Unlock()
	}
	if l.isA {
		l.ch.aToB = append(l.ch.aToB, buf)
	} else {
		l.ch.bToA = append(l.ch.bToA, buf)
	}
	return nil
}

// Receive pops the oldest frame the peer has sent, if any.
func (l *DummyLink) Receive() ([]byte, bool) {
	if !l.open {
		return nil, false
	}
	if l.locked {
		l.ch.mu.Lock()
		defer l.ch.mu.Unlock()
	}
	var src *[][]byte
	if l.isA {
		src = &l.ch.bToA
	} else {
		src = &l.ch.aToB
	}
	if len(*src) == 0 {
		return nil, false
	}
	frame := (*src)[0]
	*src = (*src)[1:]
	return frame, true
}
