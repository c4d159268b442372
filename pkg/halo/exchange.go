package halo

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"halo-ca/pkg/grid"
)

// Exchanger runs the per-generation halo protocol of one rank.
type Exchanger struct {
	rank, ranks int
	t           Transport
	buf         *Buffers
	rx          [2]Message
}

// NewExchanger binds a rank of a ring of the given size to a transport.
// height is the edge length shared by all partitions.
func NewExchanger(rank, ranks, height int, t Transport) *Exchanger {
	return &Exchanger{
		rank:  rank,
		ranks: ranks,
		t:     t,
		buf:   NewBuffers(height),
	}
}

// Buffers returns the outgoing buffers, to be installed as the grid's sink.
func (x *Exchanger) Buffers() *Buffers { return x.buf }

// Exchange sends the pending deltas of both edges, receives the deltas of
// both neighbours for the same generation and folds them into g. The
// outgoing buffers are cleared once everything has been delivered.
func (x *Exchanger) Exchange(ctx context.Context, gen uint64, g *grid.Grid) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, e := range grid.Edges {
		eg.Go(func() error {
			m := Message{
				From:       x.rank,
				To:         Neighbour(x.rank, x.ranks, e),
				Generation: gen,
				Edge:       e,
				Revive:     x.buf.Revive(e),
				Kill:       x.buf.Kill(e),
			}
			if err := x.t.Send(ctx, e, m); err != nil {
				return fmt.Errorf("send %s edge of generation %d: %w", e, gen, err)
			}
			return nil
		})
		eg.Go(func() error {
			m, err := x.t.Recv(ctx, e)
			if err != nil {
				return fmt.Errorf("receive %s edge of generation %d: %w", e, gen, err)
			}
			x.rx[e] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	h := x.buf.Height()
	for _, e := range grid.Edges {
		if err := x.rx[e].check(Neighbour(x.rank, x.ranks, e), x.rank, gen, e, h); err != nil {
			return err
		}
	}
	for _, e := range grid.Edges {
		g.FoldEdge(e, grid.DeltaRevive, x.rx[e].Revive)
		g.FoldEdge(e, grid.DeltaKill, x.rx[e].Kill)
		x.rx[e] = Message{}
	}
	x.buf.Clear()
	return nil
}
