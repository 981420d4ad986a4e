package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"
	"uniqnum/internal/shared/types"
)

const (
	DefaultPort      = 8080
	DefaultWorkers   = 10
	DefaultBufSize   = 1024
	DefaultValueBits = 128
	DefaultLogLevel  = "info"
)

// LoadIni 加载 uniqnum.ini 配置文件。文件不存在时使用默认值。
// Keys missing from the file keep their defaults; an explicit "port = 0" binds a free port.
func LoadIni(cfg *types.Config, fileName string) error {
	ApplyDefaults(cfg)
	iniFile, err := ini.LooseLoad(fileName)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", fileName, err)
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return fmt.Errorf("failed to map %s: %w", fileName, err)
	}
	overrideFromEnvInt(&cfg.LocalConf.Port, "UNIQNUM_PORT")
	overrideFromEnvInt(&cfg.CommonConf.MaxConnections, "UNIQNUM_WORKERS")
	return normalize(cfg)
}

// LoadIniBytes is LoadIni for in-memory content, without env overrides.
func LoadIniBytes(cfg *types.Config, content []byte) error {
	ApplyDefaults(cfg)
	iniFile, err := ini.Load(content)
	if err != nil {
		return fmt.Errorf("failed to parse ini content: %w", err)
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return fmt.Errorf("failed to map ini content to config struct: %w", err)
	}
	return normalize(cfg)
}

// ApplyDefaults fills zero values.
func ApplyDefaults(cfg *types.Config) {
	if cfg.LocalConf.Port == 0 {
		cfg.LocalConf.Port = DefaultPort
	}
	if cfg.LogConf.Level == "" {
		cfg.LogConf.Level = DefaultLogLevel
	}
	_ = normalize(cfg)
}

// Default returns a config populated with defaults only.
func Default() *types.Config {
	cfg := new(types.Config)
	ApplyDefaults(cfg)
	return cfg
}

func normalize(cfg *types.Config) error {
	if cfg.LocalConf.Port < 0 || cfg.LocalConf.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.LocalConf.Port)
	}
	if cfg.CommonConf.MaxConnections <= 0 {
		cfg.CommonConf.MaxConnections = DefaultWorkers
	}
	if cfg.CommonConf.BufferSize <= 0 {
		cfg.CommonConf.BufferSize = DefaultBufSize
	}
	if cfg.ServerConf.ValueBits <= 0 {
		cfg.ServerConf.ValueBits = DefaultValueBits
	}
	if cfg.ServerConf.ReadTimeout < 0 {
		cfg.ServerConf.ReadTimeout = 0
	}
	if cfg.ServerConf.WriteTimeout < 0 {
		cfg.ServerConf.WriteTimeout = 0
	}
	return nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
