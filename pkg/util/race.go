package util

import "context"

// Race2 fills two independently-arriving slots and completes once
// both are set, regardless of arrival order. Both the voice
// websocket's Hello/Ready and Hello/Resumed handshakes and the voice
// coordinator's Voice-Server/Voice-State join race use this shape.
type Race2[A, B any] struct {
	a    *A
	b    *B
	done chan struct{}
}

// NewRace2 creates an empty Race2.
func NewRace2[A, B any]() *Race2[A, B] {
	return &Race2[A, B]{done: make(chan struct{})}
}

// SetA fills the first slot.
func (r *Race2[A, B]) SetA(v A) {
	r.a = &v
	r.checkDone()
}

// SetB fills the second slot.
func (r *Race2[A, B]) SetB(v B) {
	r.b = &v
	r.checkDone()
}

func (r *Race2[A, B]) checkDone() {
	if r.a != nil && r.b != nil {
		select {
		case <-r.done:
		default:
			close(r.done)
		}
	}
}

// Done returns the channel that closes once both slots are filled.
func (r *Race2[A, B]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until both slots are filled or ctx is cancelled.
func (r *Race2[A, B]) Wait(ctx context.Context) (A, B, error) {
	select {
	case <-r.done:
		return *r.a, *r.b, nil
	case <-ctx.Done():
		var zeroA A
		var zeroB B
		return zeroA, zeroB, ctx.Err()
	}
}
