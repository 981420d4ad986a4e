package types

import "time"

// ListenerInfo holds the runtime listening info of a listener.
type ListenerInfo struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// TrafficStats 用于报告流量统计信息
type TrafficStats struct {
	Uplink   uint64 `json:"uplink"`
	Downlink uint64 `json:"downlink"`
}

// Stats is a point-in-time snapshot of the number server.
type Stats struct {
	Timestamp     time.Time    `json:"timestamp"`
	ActiveClients int          `json:"active_clients"`
	IssuedValues  int          `json:"issued_values"`
	Accepted      uint64       `json:"accepted"`
	Rejected      uint64       `json:"rejected"`
	Responded     uint64       `json:"responded"`
	Failed        uint64       `json:"failed"`
	Traffic       TrafficStats `json:"traffic"`
}

// ConnEvent 定义了单条连接事件的结构
type ConnEvent struct {
	Timestamp time.Time  `json:"timestamp"`
	ClientIP  string     `json:"client_ip"`
	TraceID   string     `json:"trace_id"`
	Action    ConnAction `json:"action"`
	Number    string     `json:"number,omitempty"`
	Error     string     `json:"error,omitempty"`
}
