package types

// CommonConf 包含共有的配置
type CommonConf struct {
	MaxConnections int `ini:"maxConnections"` // worker pool size
	BufferSize     int `ini:"bufferSize"`     // drain buffer size in bytes
}

// LocalConf 包含监听相关的配置
type LocalConf struct {
	Port        int    `ini:"port"`
	ReusePort   bool   `ini:"reuse_port"`
	WebPort     int    `ini:"web_port"`
	WebUser     string `ini:"web_user"`
	WebPassword string `ini:"web_password"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// ServerConf tunes the number handler.
type ServerConf struct {
	ValueBits    int `ini:"value_bits"`
	ReadTimeout  int `ini:"read_timeout"`  // seconds, 0 disables
	WriteTimeout int `ini:"write_timeout"` // seconds, 0 disables
}

// Config 是项目的统一配置结构体
type Config struct {
	CommonConf `ini:"common"`
	LocalConf  `ini:"local"`
	LogConf    `ini:"log"`
	ServerConf `ini:"server"`
}
