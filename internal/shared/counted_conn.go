package shared

import (
	"net"
	"sync/atomic"

	"uniqnum/internal/shared/types"
)

// TrafficCounter accumulates bytes moved over all wrapped connections.
type TrafficCounter struct {
	uplink   atomic.Uint64
	downlink atomic.Uint64
}

// Snapshot returns the current totals.
func (t *TrafficCounter) Snapshot() types.TrafficStats {
	return types.TrafficStats{
		Uplink:   t.uplink.Load(),
		Downlink: t.downlink.Load(),
	}
}

// CountedConn 是一个 net.Conn 的包装器，用于原子地统计上行和下行流量。
// Uplink is what the server writes to the client, downlink what it reads.
type CountedConn struct {
	net.Conn
	counter *TrafficCounter
}

// NewCountedConn wraps conn. A nil counter returns conn unwrapped.
func NewCountedConn(conn net.Conn, counter *TrafficCounter) net.Conn {
	if counter == nil {
		return conn
	}
	return &CountedConn{Conn: conn, counter: counter}
}

// Read 从底层连接读取数据，并增加下行流量计数。
func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.counter.downlink.Add(uint64(n))
	}
	return n, err
}

// Write 将数据写入底层连接，并增加上行流量计数。
func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.counter.uplink.Add(uint64(n))
	}
	return n, err
}
