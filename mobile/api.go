// Package mobile is the gomobile-bindable surface: the embedding app passes the
// ini content as a string and gets plain values and JSON strings back.
package mobile

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"uniqnum/internal/app"
	"uniqnum/internal/shared/config"
	"uniqnum/internal/shared/logger"
	"uniqnum/internal/shared/types"
)

var (
	// 全局变量，用于持有当前运行的唯一 AppServer 实例
	activeAppServer *app.AppServer
	instanceMutex   sync.Mutex
)

// StartServer starts an in-process server from ini content and returns the
// bound number port. Set port = 0 in the content to get a free port.
func StartServer(iniContent string) (port int, err error) {
	// Convert panics into errors, which is safer for CGo boundaries.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("go core panic: %v\n\n%s", r, debug.Stack())
			port = 0
		}
	}()

	instanceMutex.Lock()
	defer instanceMutex.Unlock()

	if activeAppServer != nil {
		return 0, fmt.Errorf("service is already running")
	}

	cfg := new(types.Config)
	if err := config.LoadIniBytes(cfg, []byte(iniContent)); err != nil {
		return 0, err
	}
	if err := logger.Init(cfg.LogConf); err != nil {
		return 0, fmt.Errorf("failed to initialize logger: %w", err)
	}

	appServer := app.New(cfg)
	port, err = appServer.Start()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start app server in embedded mode")
		appServer.Stop()
		return 0, err
	}

	activeAppServer = appServer
	logger.Debug().Int("port", port).Msg("Go core started successfully")
	return port, nil
}

// StopServer stops the running server, if any.
func StopServer() {
	instanceMutex.Lock()
	defer instanceMutex.Unlock()

	if activeAppServer != nil {
		activeAppServer.Stop()
		activeAppServer = nil
	}
}

// QueryStats returns the current types.Stats as JSON, or "{}" when stopped.
func QueryStats() (statsJson string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("go core panic in QueryStats: %v\n\n%s", r, debug.Stack())
			statsJson = "{}"
		}
	}()

	instanceMutex.Lock()
	defer instanceMutex.Unlock()

	if activeAppServer == nil {
		return "{}", nil
	}

	data, err := json.Marshal(activeAppServer.Stats())
	if err != nil {
		return "{}", fmt.Errorf("failed to marshal stats: %w", err)
	}
	return string(data), nil
}
