package halo

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"halo-ca/pkg/grid"
)

const (
	frameDelta byte = iota + 1
	frameAbort
)

const (
	dialRetry        = 100 * time.Millisecond
	handshakeTimeout = 10 * time.Second
	abortTimeout     = time.Second
	maxFrameRows     = 1 << 20
	maxAbortText     = 4 << 10
)

// TCPConfig places one rank in a TCP ring.
type TCPConfig struct {
	Rank  int
	Ranks int
	// Listener accepts the connection of the Low neighbour. Connect closes
	// it once the ring link is up.
	Listener net.Listener
	// High is the listen address of the High neighbour.
	High string
}

// TCP is a Transport over two TCP connections: one dialled to the High
// neighbour and one accepted from the Low neighbour.
type TCP struct {
	rank, ranks int
	links       [2]*link
	inbox       [2]chan inbound
	grp         *group
	closed      chan struct{}
	closeOnce   sync.Once
}

type link struct {
	conn net.Conn
	mu   sync.Mutex
	w    *bufio.Writer
	buf  []byte
}

type inbound struct {
	m   Message
	err error
}

// Connect dials the High neighbour, retrying until ctx ends, and accepts
// the Low neighbour. The dialler announces its rank in a handshake.
func Connect(ctx context.Context, cfg TCPConfig) (*TCP, error) {
	if cfg.Ranks < 1 || cfg.Rank < 0 || cfg.Rank >= cfg.Ranks {
		return nil, fmt.Errorf("halo: rank %d outside ring of %d", cfg.Rank, cfg.Ranks)
	}
	defer cfg.Listener.Close()

	var low, high net.Conn
	eg, ctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(ctx, func() { cfg.Listener.Close() })
	defer stop()
	eg.Go(func() error {
		conn, err := dial(ctx, cfg.High)
		if err != nil {
			return err
		}
		high = conn
		return writeHello(conn, cfg.Rank, cfg.Ranks)
	})
	eg.Go(func() error {
		conn, err := cfg.Listener.Accept()
		if err != nil {
			return fmt.Errorf("halo: accept low neighbour: %w", err)
		}
		low = conn
		return readHello(conn, Neighbour(cfg.Rank, cfg.Ranks, grid.Low), cfg.Ranks)
	})
	if err := eg.Wait(); err != nil {
		for _, c := range []net.Conn{low, high} {
			if c != nil {
				c.Close()
			}
		}
		return nil, err
	}

	t := &TCP{
		rank:   cfg.Rank,
		ranks:  cfg.Ranks,
		grp:    newGroup(),
		closed: make(chan struct{}),
	}
	t.links[grid.Low] = &link{conn: low, w: bufio.NewWriter(low)}
	t.links[grid.High] = &link{conn: high, w: bufio.NewWriter(high)}
	for _, e := range grid.Edges {
		t.inbox[e] = make(chan inbound, 1)
		go t.read(e)
	}
	return t, nil
}

func dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("halo: dial %s: %w", addr, err)
		case <-time.After(dialRetry):
		}
	}
}

func writeHello(conn net.Conn, rank, ranks int) error {
	b := binary.AppendUvarint(nil, uint64(rank))
	b = binary.AppendUvarint(b, uint64(ranks))
	conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	if _, err := conn.Write(b); err != nil {
		return fmt.Errorf("halo: handshake: %w", err)
	}
	return nil
}

func readHello(conn net.Conn, want, ranks int) error {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})
	// Unbuffered so no frame bytes are consumed before the reader starts.
	r := byteReader{conn}
	rank, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("halo: handshake: %w", err)
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("halo: handshake: %w", err)
	}
	if int(rank) != want || int(n) != ranks {
		return fmt.Errorf("%w: handshake from rank %d of %d, expected rank %d of %d", ErrProtocol, rank, n, want, ranks)
	}
	return nil
}

type byteReader struct{ r io.Reader }

func (b byteReader) ReadByte() (byte, error) {
	var p [1]byte
	_, err := io.ReadFull(b.r, p[:])
	return p[0], err
}

// Send implements Transport.
func (t *TCP) Send(ctx context.Context, e grid.Edge, m Message) error {
	select {
	case <-t.grp.done:
		return t.grp.err()
	default:
	}
	l := t.links[e]
	l.mu.Lock()
	defer l.mu.Unlock()

	b := append(l.buf[:0], frameDelta)
	b = binary.AppendUvarint(b, uint64(m.From))
	b = binary.AppendUvarint(b, uint64(m.To))
	b = binary.AppendUvarint(b, m.Generation)
	b = append(b, byte(m.Edge))
	for _, ys := range [2][]int32{m.Revive, m.Kill} {
		b = binary.AppendUvarint(b, uint64(len(ys)))
		for _, y := range ys {
			b = binary.AppendUvarint(b, uint64(y))
		}
	}
	l.buf = b

	deadline, _ := ctx.Deadline()
	l.conn.SetWriteDeadline(deadline)
	if _, err := l.w.Write(b); err != nil {
		return fmt.Errorf("halo: send %s: %w", e, err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("halo: send %s: %w", e, err)
	}
	return nil
}

// Recv implements Transport.
func (t *TCP) Recv(ctx context.Context, e grid.Edge) (Message, error) {
	select {
	case in := <-t.inbox[e]:
		return in.m, in.err
	case <-t.grp.done:
		return Message{}, t.grp.err()
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Abort implements Transport. The first abort is forwarded to both
// neighbours, which forward it in turn until the whole ring has stopped.
func (t *TCP) Abort(cause error) {
	reason := "aborted"
	if cause != nil {
		reason = cause.Error()
	}
	t.abort(cause, reason)
}

func (t *TCP) abort(cause error, reason string) {
	if !t.grp.abort(cause) {
		return
	}
	if len(reason) > maxAbortText {
		reason = reason[:maxAbortText]
	}
	b := []byte{frameAbort}
	b = binary.AppendUvarint(b, uint64(len(reason)))
	b = append(b, reason...)
	for _, l := range t.links {
		l.mu.Lock()
		l.conn.SetWriteDeadline(time.Now().Add(abortTimeout))
		if _, err := l.w.Write(b); err == nil {
			l.w.Flush()
		}
		l.mu.Unlock()
	}
}

// Close implements Transport.
func (t *TCP) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = errors.Join(t.links[grid.Low].conn.Close(), t.links[grid.High].conn.Close())
	})
	return err
}

func (t *TCP) read(e grid.Edge) {
	r := bufio.NewReader(t.links[e].conn)
	from := Neighbour(t.rank, t.ranks, e)
	for {
		m, err := readFrame(r)
		var remote *remoteAbort
		if errors.As(err, &remote) {
			t.abort(fmt.Errorf("via rank %d: %s", from, remote.reason), remote.reason)
			return
		}
		if err != nil {
			select {
			case <-t.closed:
				return
			case <-t.grp.done:
				return
			default:
			}
			err = fmt.Errorf("halo: receive %s: %w", e, err)
		}
		select {
		case t.inbox[e] <- inbound{m: m, err: err}:
		case <-t.closed:
			return
		case <-t.grp.done:
			return
		}
		if err != nil {
			return
		}
	}
}

type remoteAbort struct{ reason string }

func (r *remoteAbort) Error() string { return "remote abort: " + r.reason }

func readFrame(r *bufio.Reader) (Message, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return Message{}, err
	}
	switch kind {
	case frameAbort:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return Message{}, err
		}
		if n > maxAbortText {
			return Message{}, fmt.Errorf("%w: abort text of %d bytes", ErrProtocol, n)
		}
		text := make([]byte, n)
		if _, err := io.ReadFull(r, text); err != nil {
			return Message{}, err
		}
		return Message{}, &remoteAbort{reason: string(text)}
	case frameDelta:
	default:
		return Message{}, fmt.Errorf("%w: unknown frame kind %d", ErrProtocol, kind)
	}

	var m Message
	var head [3]uint64
	for i := range head {
		if head[i], err = binary.ReadUvarint(r); err != nil {
			return Message{}, err
		}
	}
	m.From, m.To, m.Generation = int(head[0]), int(head[1]), head[2]
	edge, err := r.ReadByte()
	if err != nil {
		return Message{}, err
	}
	if grid.Edge(edge) != grid.Low && grid.Edge(edge) != grid.High {
		return Message{}, fmt.Errorf("%w: unknown edge %d", ErrProtocol, edge)
	}
	m.Edge = grid.Edge(edge)
	if m.Revive, err = readRows(r); err != nil {
		return Message{}, err
	}
	if m.Kill, err = readRows(r); err != nil {
		return Message{}, err
	}
	return m, nil
}

func readRows(r *bufio.Reader) ([]int32, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxFrameRows {
		return nil, fmt.Errorf("%w: %d rows in one frame", ErrProtocol, n)
	}
	ys := make([]int32, n)
	for i := range ys {
		y, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		if y > maxFrameRows {
			return nil, fmt.Errorf("%w: row %d", ErrProtocol, y)
		}
		ys[i] = int32(y)
	}
	return ys, nil
}
