package halo

import (
	"context"
	"slices"
	"sync"

	"halo-ca/pkg/grid"
)

// Transport moves messages between a partition and its two ring
// neighbours. Send and Recv on different edges may run concurrently.
type Transport interface {
	// Send delivers m to the neighbour across edge e.
	Send(ctx context.Context, e grid.Edge, m Message) error
	// Recv returns the next message from the neighbour across edge e.
	Recv(ctx context.Context, e grid.Edge) (Message, error)
	// Abort fails every pending and future operation of the whole group.
	Abort(cause error)
	Close() error
}

// Neighbour returns the rank across edge e in a ring of n ranks.
func Neighbour(rank, n int, e grid.Edge) int {
	if e == grid.Low {
		return (rank - 1 + n) % n
	}
	return (rank + 1) % n
}

// group is an abort signal shared by everyone who can observe it.
type group struct {
	once  sync.Once
	done  chan struct{}
	cause error
}

func newGroup() *group { return &group{done: make(chan struct{})} }

// abort reports whether this call was the one that fired.
func (g *group) abort(cause error) bool {
	fired := false
	g.once.Do(func() {
		g.cause = abortError(cause)
		close(g.done)
		fired = true
	})
	return fired
}

func (g *group) err() error {
	<-g.done
	return g.cause
}

// Local is one rank of an in-process ring built by NewRing.
type Local struct {
	rank int
	out  [2]chan Message
	in   [2]chan Message
	grp  *group
}

// NewRing connects n in-process ranks into a ring. Each directed link is
// its own buffered channel, so two ranks never confuse the messages of
// their two shared links. All ranks share one abort signal.
func NewRing(n int) []*Local {
	// toHigh[r] carries r -> r+1, toLow[r] carries r -> r-1.
	toHigh := make([]chan Message, n)
	toLow := make([]chan Message, n)
	for r := 0; r < n; r++ {
		toHigh[r] = make(chan Message, 1)
		toLow[r] = make(chan Message, 1)
	}
	grp := newGroup()
	ranks := make([]*Local, n)
	for r := 0; r < n; r++ {
		l := &Local{rank: r, grp: grp}
		l.out[grid.High] = toHigh[r]
		l.out[grid.Low] = toLow[r]
		l.in[grid.Low] = toHigh[Neighbour(r, n, grid.Low)]
		l.in[grid.High] = toLow[Neighbour(r, n, grid.High)]
		ranks[r] = l
	}
	return ranks
}

// Send implements Transport. The row lists are copied, so the caller may
// reuse its buffers as soon as Send returns.
func (l *Local) Send(ctx context.Context, e grid.Edge, m Message) error {
	m.Revive = slices.Clone(m.Revive)
	m.Kill = slices.Clone(m.Kill)
	if err := l.aborted(); err != nil {
		return err
	}
	select {
	case l.out[e] <- m:
		return nil
	case <-l.grp.done:
		return l.grp.err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv implements Transport.
func (l *Local) Recv(ctx context.Context, e grid.Edge) (Message, error) {
	if err := l.aborted(); err != nil {
		return Message{}, err
	}
	select {
	case m := <-l.in[e]:
		return m, nil
	case <-l.grp.done:
		return Message{}, l.grp.err()
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// aborted returns the group error once an abort happened. A ready data
// channel must never win over an abort in the blocking select.
func (l *Local) aborted() error {
	select {
	case <-l.grp.done:
		return l.grp.err()
	default:
		return nil
	}
}

// Abort implements Transport.
func (l *Local) Abort(cause error) { l.grp.abort(cause) }

// Close implements Transport. Channels stay open; peers still blocked on
// this rank are released through Abort.
func (l *Local) Close() error { return nil }
