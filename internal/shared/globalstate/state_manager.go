package globalstate

import (
	"sync"
)

// StatusManager holds a human-readable server status line.
type StatusManager struct {
	mu     sync.RWMutex
	status string
}

// 全局的状态管理器实例
var GlobalStatus = NewStatusManager("Initializing...")

func NewStatusManager(initial string) *StatusManager {
	return &StatusManager{status: initial}
}

// Set 方法用于安全地更新状态。
func (sm *StatusManager) Set(newStatus string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.status = newStatus
}

// Get 方法用于安全地读取状态。
func (sm *StatusManager) Get() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.status
}
