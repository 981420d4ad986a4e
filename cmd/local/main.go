package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"uniqnum/internal/app"
	"uniqnum/internal/shared/config"
	"uniqnum/internal/shared/logger"
	"uniqnum/internal/shared/types"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "uniqnum.ini")

	// 1. 加载 .ini 配置
	cfg := new(types.Config)
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 2. 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 3. 创建并运行服务器
	app.New(cfg).Run()
}
