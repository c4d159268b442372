package halo

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"halo-ca/pkg/grid"
)

// pending counts the deltas waiting on both edges.
func pending(b *Buffers) int {
	n := 0
	for _, e := range grid.Edges {
		n += len(b.Revive(e)) + len(b.Kill(e))
	}
	return n
}

func TestBuffersCancelOpposingDeltas(t *testing.T) {
	b := NewBuffers(6)
	b.Record(grid.Low, grid.DeltaRevive, 1)
	b.Record(grid.Low, grid.DeltaRevive, 4)
	b.Record(grid.High, grid.DeltaKill, 2)
	b.Record(grid.Low, grid.DeltaKill, 1)
	b.Record(grid.Low, grid.DeltaRevive, 4)

	if got := b.Revive(grid.Low); !slices.Equal(got, []int32{4}) {
		t.Fatalf("low revive = %v, expected [4]", got)
	}
	if got := b.Kill(grid.Low); len(got) != 0 {
		t.Fatalf("low kill = %v, expected none", got)
	}
	if got := b.Kill(grid.High); !slices.Equal(got, []int32{2}) {
		t.Fatalf("high kill = %v, expected [2]", got)
	}
	if pending(b) != 2 {
		t.Fatalf("expected 2 pending deltas, got %d", pending(b))
	}

	b.Clear()
	if pending(b) != 0 {
		t.Fatalf("clear left %d deltas", pending(b))
	}
	b.Record(grid.Low, grid.DeltaKill, 4)
	if got := b.Kill(grid.Low); !slices.Equal(got, []int32{4}) {
		t.Fatalf("after clear low kill = %v, expected [4]", got)
	}
}

func TestBuffersStayBoundedByEdge(t *testing.T) {
	const h = 5
	b := NewBuffers(h)
	for round := 0; round < 4; round++ {
		for y := 0; y < h; y++ {
			d := grid.DeltaRevive
			if (y+round)%2 == 0 {
				d = grid.DeltaKill
			}
			b.Record(grid.High, d, y)
		}
	}
	if n := len(b.Revive(grid.High)) + len(b.Kill(grid.High)); n > h {
		t.Fatalf("high edge holds %d deltas, bound is %d", n, h)
	}
}

func TestNeighbour(t *testing.T) {
	if got := Neighbour(0, 4, grid.Low); got != 3 {
		t.Fatalf("low neighbour of 0 = %d, expected 3", got)
	}
	if got := Neighbour(3, 4, grid.High); got != 0 {
		t.Fatalf("high neighbour of 3 = %d, expected 0", got)
	}
	if got := Neighbour(0, 1, grid.High); got != 0 {
		t.Fatalf("single rank must neighbour itself, got %d", got)
	}
}

func TestRingRoutesEachLinkSeparately(t *testing.T) {
	ctx := context.Background()
	ring := NewRing(2)

	if err := ring[0].Send(ctx, grid.High, Message{From: 0, Edge: grid.High, Revive: []int32{1}}); err != nil {
		t.Fatal(err)
	}
	if err := ring[0].Send(ctx, grid.Low, Message{From: 0, Edge: grid.Low, Kill: []int32{2}}); err != nil {
		t.Fatal(err)
	}
	low, err := ring[1].Recv(ctx, grid.Low)
	if err != nil {
		t.Fatal(err)
	}
	high, err := ring[1].Recv(ctx, grid.High)
	if err != nil {
		t.Fatal(err)
	}
	if low.Edge != grid.High || !slices.Equal(low.Revive, []int32{1}) {
		t.Fatalf("rank 1 low received %+v, expected rank 0's high edge", low)
	}
	if high.Edge != grid.Low || !slices.Equal(high.Kill, []int32{2}) {
		t.Fatalf("rank 1 high received %+v, expected rank 0's low edge", high)
	}
}

func TestRingSendCopiesRows(t *testing.T) {
	ring := NewRing(3)
	rows := []int32{7}
	ring[0].Send(context.Background(), grid.High, Message{Revive: rows})
	rows[0] = 9
	m, _ := ring[1].Recv(context.Background(), grid.Low)
	if m.Revive[0] != 7 {
		t.Fatalf("received row %d, sender reuse leaked into the message", m.Revive[0])
	}
}

func TestAbortReleasesBlockedPeers(t *testing.T) {
	ring := NewRing(3)
	errc := make(chan error, 1)
	go func() {
		_, err := ring[2].Recv(context.Background(), grid.Low)
		errc <- err
	}()
	cause := errors.New("disk full")
	ring[0].Abort(cause)
	ring[1].Abort(errors.New("second"))

	select {
	case err := <-errc:
		if !errors.Is(err, ErrAborted) {
			t.Fatalf("blocked receive returned %v, expected ErrAborted", err)
		}
		if err.Error() != "halo: aborted: disk full" {
			t.Fatalf("abort cause = %q", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("abort did not release the blocked receiver")
	}
	if err := ring[1].Send(context.Background(), grid.High, Message{}); !errors.Is(err, ErrAborted) {
		t.Fatalf("send after abort = %v, expected ErrAborted", err)
	}
}

func TestAbortWinsOverReadyChannels(t *testing.T) {
	ring := NewRing(2)
	// rank 1 has a queued message from rank 0 and rank 0's outbound link has room
	if err := ring[0].Send(context.Background(), grid.High, Message{From: 0, To: 1, Revive: []int32{1}}); err != nil {
		t.Fatal(err)
	}
	ring[0].Abort(errors.New("peer lost"))
	for i := 0; i < 500; i++ {
		if _, err := ring[1].Recv(context.Background(), grid.Low); !errors.Is(err, ErrAborted) {
			t.Fatalf("recv %d after abort = %v, expected ErrAborted", i, err)
		}
		if err := ring[1].Send(context.Background(), grid.Low, Message{From: 1, To: 0}); !errors.Is(err, ErrAborted) {
			t.Fatalf("send %d after abort = %v, expected ErrAborted", i, err)
		}
	}
}

// haloRing builds one halo grid and exchanger per transport.
func haloRing(t *testing.T, w, h int, transports []Transport) ([]*grid.Grid, []*Exchanger) {
	t.Helper()
	grids := make([]*grid.Grid, len(transports))
	xs := make([]*Exchanger, len(transports))
	for r, tr := range transports {
		xs[r] = NewExchanger(r, len(transports), h, tr)
		g, err := grid.New(grid.Config{Width: w, Height: h, Halo: true, Sink: xs[r].Buffers()})
		if err != nil {
			t.Fatal(err)
		}
		grids[r] = g
	}
	return grids, xs
}

func exchangeAll(ctx context.Context, gen uint64, grids []*grid.Grid, xs []*Exchanger) error {
	eg, ctx := errgroup.WithContext(ctx)
	for r := range xs {
		eg.Go(func() error { return xs[r].Exchange(ctx, gen, grids[r]) })
	}
	return eg.Wait()
}

func TestExchangeFoldsRemoteEdgeCells(t *testing.T) {
	ring := NewRing(2)
	grids, xs := haloRing(t, 4, 6, []Transport{ring[0], ring[1]})

	grids[0].Revive(3, 2) // rank 0 high edge, touches rank 1 column 0
	grids[1].Revive(0, 5) // rank 1 low edge, touches rank 0 column 3

	if err := exchangeAll(context.Background(), 0, grids, xs); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	for _, y := range []int{1, 2, 3} {
		if c, ok := grids[1].Cell(0, y); !ok || c.Count != 1 {
			t.Fatalf("rank 1 cell (0,%d) = %+v tracked=%v, expected count 1", y, c, ok)
		}
	}
	for _, y := range []int{4, 5, 0} {
		if c, ok := grids[0].Cell(3, y); !ok || c.Count != 1 {
			t.Fatalf("rank 0 cell (3,%d) = %+v tracked=%v, expected count 1", y, c, ok)
		}
	}
	// The wrap: rank 0's low edge faces rank 1's high edge, untouched here.
	if _, ok := grids[0].Cell(0, 2); ok {
		t.Fatal("rank 0 low column should not see anything")
	}
	for r, x := range xs {
		if pending(x.Buffers()) != 0 {
			t.Fatalf("rank %d buffers not cleared", r)
		}
	}

	grids[0].Kill(3, 2)
	if err := exchangeAll(context.Background(), 1, grids, xs); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	for _, y := range []int{1, 2, 3} {
		if _, ok := grids[1].Cell(0, y); ok {
			t.Fatalf("rank 1 cell (0,%d) still tracked after remote kill", y)
		}
	}
}

func TestExchangeRejectsGenerationMismatch(t *testing.T) {
	ring := NewRing(2)
	grids, xs := haloRing(t, 3, 3, []Transport{ring[0], ring[1]})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for r, gen := range []uint64{4, 5} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[r] = xs[r].Exchange(context.Background(), gen, grids[r])
		}()
	}
	wg.Wait()
	for r, err := range errs {
		if !errors.Is(err, ErrProtocol) {
			t.Fatalf("rank %d exchange = %v, expected ErrProtocol", r, err)
		}
	}
}

func TestMessageCheckBounds(t *testing.T) {
	m := Message{From: 1, To: 0, Generation: 3, Edge: grid.Low, Revive: []int32{0, 1, 2, 3}}
	if err := m.check(1, 0, 3, grid.High, 3); !errors.Is(err, ErrProtocol) {
		t.Fatalf("oversized message accepted: %v", err)
	}
	m.Revive = []int32{5}
	if err := m.check(1, 0, 3, grid.High, 3); !errors.Is(err, ErrProtocol) {
		t.Fatalf("row outside edge accepted: %v", err)
	}
	m.Revive = []int32{2}
	if err := m.check(1, 0, 3, grid.High, 3); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
	if err := m.check(1, 0, 3, grid.Low, 3); !errors.Is(err, ErrProtocol) {
		t.Fatalf("message on the wrong edge accepted: %v", err)
	}
}

func tcpRing(t *testing.T, n int) []*TCP {
	t.Helper()
	listeners := make([]net.Listener, n)
	for r := range listeners {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		listeners[r] = ln
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ring := make([]*TCP, n)
	eg, ctx := errgroup.WithContext(ctx)
	for r := range ring {
		cfg := TCPConfig{
			Rank:     r,
			Ranks:    n,
			Listener: listeners[r],
			High:     listeners[Neighbour(r, n, grid.High)].Addr().String(),
		}
		eg.Go(func() error {
			tr, err := Connect(ctx, cfg)
			ring[r] = tr
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("connect ring: %v", err)
	}
	t.Cleanup(func() {
		for _, tr := range ring {
			tr.Close()
		}
	})
	return ring
}

func TestTCPRingExchange(t *testing.T) {
	ring := tcpRing(t, 3)
	transports := make([]Transport, len(ring))
	for r, tr := range ring {
		transports[r] = tr
	}
	grids, xs := haloRing(t, 2, 5, transports)

	grids[2].Revive(1, 4) // high edge of the last rank wraps to rank 0
	grids[1].Revive(0, 0) // low edge of rank 1 faces rank 0
	if err := exchangeAll(context.Background(), 0, grids, xs); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	for _, y := range []int{3, 4, 0} {
		if c, ok := grids[0].Cell(0, y); !ok || c.Count != 1 {
			t.Fatalf("rank 0 cell (0,%d) = %+v tracked=%v, expected count 1", y, c, ok)
		}
	}
	for _, y := range []int{4, 0, 1} {
		if c, ok := grids[0].Cell(1, y); !ok || c.Count != 1 {
			t.Fatalf("rank 0 cell (1,%d) = %+v tracked=%v, expected count 1", y, c, ok)
		}
	}
	if err := exchangeAll(context.Background(), 1, grids, xs); err != nil {
		t.Fatalf("second exchange: %v", err)
	}
}

func TestTCPAbortFloodsRing(t *testing.T) {
	ring := tcpRing(t, 4)
	errc := make(chan error, 1)
	go func() {
		_, err := ring[2].Recv(context.Background(), grid.High)
		errc <- err
	}()
	ring[0].Abort(errors.New("frame write failed"))

	select {
	case err := <-errc:
		if !errors.Is(err, ErrAborted) {
			t.Fatalf("receive on rank 2 = %v, expected ErrAborted", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("abort never reached rank 2")
	}
}
