package handler

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"uniqnum/internal/core/random"
	"uniqnum/internal/core/registry"
	"uniqnum/internal/shared"
	"uniqnum/internal/shared/types"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

// addrConn lets a net.Pipe end report a chosen remote address.
type addrConn struct {
	net.Conn
	remote net.Addr
}

func (c *addrConn) RemoteAddr() net.Addr { return c.remote }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*types.ConnEvent
}

func (p *recordingPublisher) PublishConnEvent(e *types.ConnEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) actions() []types.ConnAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.ConnAction, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

func newTestHandler(opts Options) (*Handler, *registry.ClientRegistry, *registry.IssuedRegistry) {
	clients := registry.NewClientRegistry()
	issued := registry.NewIssuedRegistry()
	return New(clients, issued, random.New(128), opts), clients, issued
}

// serve runs h.Handle on the server end of a pipe and returns the client end
// plus a channel closed when Handle returns.
func serve(h *Handler, remote string) (net.Conn, <-chan struct{}) {
	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Handle(&addrConn{Conn: server, remote: fakeAddr(remote)})
	}()
	return client, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Handle did not return in time")
	}
}

func TestHandle_WritesResponseAndReleases(t *testing.T) {
	h, clients, issued := newTestHandler(Options{})
	traffic := &shared.TrafficCounter{}
	h.WithTraffic(traffic)

	client, done := serve(h, "192.168.1.10:40000")

	resp, err := http.ReadResponse(bufio.NewReader(client), nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, len(body), resp.ContentLength)
	n, err := ParseNumber(body)
	require.NoError(t, err)
	assert.True(t, issued.Contains(n))

	assert.Equal(t, 1, clients.Len(), "address is held until the connection ends")
	require.NoError(t, client.Close())
	waitDone(t, done)

	assert.Equal(t, 0, clients.Len())
	assert.Equal(t, Counters{Accepted: 1, Responded: 1}, h.Counters())
	assert.EqualValues(t, len(BuildResponse(n)), traffic.Snapshot().Uplink)
}

func TestHandle_RejectsDuplicateAddress(t *testing.T) {
	h, clients, issued := newTestHandler(Options{})
	require.True(t, clients.TryAcquire("10.0.0.1"))

	client, done := serve(h, "10.0.0.1:5555")
	waitDone(t, done)

	// The handler closed its end, so Read returns at once.
	buf := make([]byte, 16)
	n, err := client.Read(buf)
	assert.Zero(t, n, "rejected connection must not receive any bytes")
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, 1, clients.Len(), "rejection must not release the holder's entry")
	assert.Equal(t, 0, issued.Len())
	assert.Equal(t, Counters{Rejected: 1}, h.Counters())
}

func TestHandle_SameIPDifferentPortIsDuplicate(t *testing.T) {
	h, _, _ := newTestHandler(Options{})

	first, firstDone := serve(h, "10.0.0.2:1000")
	_, err := http.ReadResponse(bufio.NewReader(first), nil)
	require.NoError(t, err)

	second, secondDone := serve(h, "10.0.0.2:2000")
	waitDone(t, secondDone)
	_, err = second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, first.Close())
	waitDone(t, firstDone)

	third, thirdDone := serve(h, "10.0.0.2:3000")
	_, err = http.ReadResponse(bufio.NewReader(third), nil)
	require.NoError(t, err)
	require.NoError(t, third.Close())
	waitDone(t, thirdDone)

	assert.Equal(t, Counters{Accepted: 2, Rejected: 1, Responded: 2}, h.Counters())
}

func TestHandle_DrainsRequestBytes(t *testing.T) {
	h, _, _ := newTestHandler(Options{BufferSize: 4})
	traffic := &shared.TrafficCounter{}
	h.WithTraffic(traffic)

	client, done := serve(h, "10.0.0.3:1")
	request := "GET / HTTP/1.1\r\nHost: example\r\n\r\n"

	writeErr := make(chan error, 1)
	go func() {
		_, err := client.Write([]byte(request))
		writeErr <- err
	}()

	_, err := http.ReadResponse(bufio.NewReader(client), nil)
	require.NoError(t, err)
	require.NoError(t, <-writeErr)
	require.NoError(t, client.Close())
	waitDone(t, done)

	assert.EqualValues(t, len(request), traffic.Snapshot().Downlink)
}

func TestHandle_WriteFailureStillReleases(t *testing.T) {
	h, clients, _ := newTestHandler(Options{})
	events := &recordingPublisher{}
	h.WithEvents(events)

	server, client := net.Pipe()
	require.NoError(t, client.Close())

	h.Handle(&addrConn{Conn: server, remote: fakeAddr("10.0.0.4:1")})

	assert.Equal(t, 0, clients.Len())
	assert.Equal(t, Counters{Accepted: 1, Failed: 1}, h.Counters())
	assert.Equal(t, []types.ConnAction{types.ActionAccepted, types.ActionError, types.ActionClosed}, events.actions())
}

func TestHandle_ReadTimeoutEndsDrain(t *testing.T) {
	h, clients, _ := newTestHandler(Options{ReadTimeout: 50 * time.Millisecond})

	client, done := serve(h, "10.0.0.5:1")
	defer client.Close()

	_, err := http.ReadResponse(bufio.NewReader(client), nil)
	require.NoError(t, err)

	// The client keeps its end open; only the deadline can end the drain.
	waitDone(t, done)
	assert.Equal(t, 0, clients.Len())
	assert.Equal(t, Counters{Accepted: 1, Responded: 1}, h.Counters())
}

func TestHandle_PublishesLifecycle(t *testing.T) {
	h, clients, _ := newTestHandler(Options{})
	events := &recordingPublisher{}
	h.WithEvents(events)

	client, done := serve(h, "10.0.0.6:1")
	_, err := http.ReadResponse(bufio.NewReader(client), nil)
	require.NoError(t, err)
	require.NoError(t, client.Close())
	waitDone(t, done)

	require.True(t, clients.TryAcquire("10.0.0.7"))
	rejected, rejectedDone := serve(h, "10.0.0.7:1")
	waitDone(t, rejectedDone)
	rejected.Close()

	assert.Equal(t, []types.ConnAction{
		types.ActionAccepted,
		types.ActionResponded,
		types.ActionClosed,
		types.ActionRejected,
	}, events.actions())

	events.mu.Lock()
	defer events.mu.Unlock()
	assert.NotEmpty(t, events.events[1].Number)
	assert.Equal(t, "10.0.0.6", events.events[1].ClientIP)
	assert.Equal(t, events.events[0].TraceID, events.events[2].TraceID)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "127.0.0.1", ClientIP(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9}))
	assert.Equal(t, "::1", ClientIP(&net.TCPAddr{IP: net.ParseIP("::1"), Port: 9}))
	assert.Equal(t, "10.1.2.3", ClientIP(fakeAddr("10.1.2.3:80")))
	assert.Equal(t, "pipe", ClientIP(fakeAddr("pipe")))
	assert.Equal(t, "", ClientIP(nil))
}
