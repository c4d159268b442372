package halo

import (
	"errors"
	"fmt"

	"halo-ca/pkg/grid"
)

var (
	// ErrAborted is returned once the partition group has been aborted,
	// locally or by any peer.
	ErrAborted = errors.New("halo: aborted")
	// ErrProtocol reports a malformed, misrouted or out-of-order message.
	ErrProtocol = errors.New("halo: protocol violation")
)

// Message carries the deltas of one border column for one generation.
type Message struct {
	From       int
	To         int
	Generation uint64
	// Edge is the sender's border the deltas come from.
	Edge   grid.Edge
	Revive []int32
	Kill   []int32
}

// check validates a message received on edge e of rank to.
func (m Message) check(from, to int, gen uint64, e grid.Edge, height int) error {
	switch {
	case m.From != from || m.To != to:
		return fmt.Errorf("%w: message %d->%d on %s edge of rank %d, expected %d->%d", ErrProtocol, m.From, m.To, e, to, from, to)
	case m.Generation != gen:
		return fmt.Errorf("%w: rank %d got generation %d from rank %d, expected %d", ErrProtocol, to, m.Generation, from, gen)
	case m.Edge != e.Opposite():
		return fmt.Errorf("%w: %s edge deltas arrived on %s edge", ErrProtocol, m.Edge, e)
	case len(m.Revive) > height || len(m.Kill) > height:
		return fmt.Errorf("%w: %d revive / %d kill deltas exceed edge length %d", ErrProtocol, len(m.Revive), len(m.Kill), height)
	}
	for _, ys := range [2][]int32{m.Revive, m.Kill} {
		for _, y := range ys {
			if y < 0 || int(y) >= height {
				return fmt.Errorf("%w: row %d outside edge length %d", ErrProtocol, y, height)
			}
		}
	}
	return nil
}

// abortError wraps a cause so that errors.Is matches ErrAborted.
func abortError(cause error) error {
	switch {
	case cause == nil:
		return ErrAborted
	case errors.Is(cause, ErrAborted):
		return cause
	}
	return fmt.Errorf("%w: %v", ErrAborted, cause)
}
