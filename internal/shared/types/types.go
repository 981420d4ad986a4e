package types

// StatsProvider is implemented by anything that can report the current Stats.
type StatsProvider interface {
	Stats() *Stats
	ConnectedClients() []string
}

// EventPublisher receives connection lifecycle events. Implementations must not block.
type EventPublisher interface {
	PublishConnEvent(entry *ConnEvent)
}

// ConnAction 连接生命周期中的动作
type ConnAction string

const (
	ActionAccepted  ConnAction = "accepted"
	ActionRejected  ConnAction = "rejected"
	ActionResponded ConnAction = "responded"
	ActionClosed    ConnAction = "closed"
	ActionError     ConnAction = "error"
)
