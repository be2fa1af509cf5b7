// Package config 提供运行时配置的加载、校验和热更新监视。
package config

import (
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/niamster/celluloid/mailbox"
)

// ActorConfig 是 Actor 默认参数。
type ActorConfig struct {
	// MailboxCapacity 普通队列单段容量
	MailboxCapacity uint64 `yaml:"mailbox_capacity"`
	// UrgentCapacity 紧急队列单段容量
	UrgentCapacity uint64 `yaml:"urgent_capacity"`
	// MaxSegments 邮箱最大分段数
	MaxSegments uint64 `yaml:"max_segments"`
	// Backpressure 邮箱满时的背压策略：expand、block 或 drop_newest
	Backpressure string `yaml:"backpressure"`
}

// LogConfig 是日志参数。
type LogConfig struct {
	// Level 日志级别：debug、info、warn、error
	Level string `yaml:"level"`
}

// MetricsConfig 是指标导出参数。
type MetricsConfig struct {
	// Enabled 是否启用指标收集
	Enabled bool `yaml:"enabled"`
	// Addr 指标 HTTP 端点监听地址，空串时不监听只收集
	Addr string `yaml:"addr"`
}

// RateLimitConfig 是出站调用限流参数。
type RateLimitConfig struct {
	// QPS 每秒允许的出站调用数，0 表示不限流
	QPS int64 `yaml:"qps"`
	// Burst 允许的突发大小
	Burst int64 `yaml:"burst"`
}

// Config 是运行时配置根。
type Config struct {
	Actor     ActorConfig     `yaml:"actor"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Actor: ActorConfig{
			MailboxCapacity: 65536,
			UrgentCapacity:  1024,
			MaxSegments:     8,
			Backpressure:    "expand",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load 从 YAML 文件加载配置。文件中省略的字段保持默认值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("read config %q: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, xerrors.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate 校验配置取值。
func (c *Config) Validate() error {
	switch c.Actor.Backpressure {
	case "", "expand", "block", "drop_newest":
	default:
		return xerrors.Errorf("unknown backpressure policy %q", c.Actor.Backpressure)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return xerrors.Errorf("unknown log level %q", c.Log.Level)
	}
	if c.RateLimit.QPS < 0 {
		return xerrors.Errorf("rate limit qps must be >= 0, got %d", c.RateLimit.QPS)
	}
	if c.RateLimit.Burst < 0 {
		return xerrors.Errorf("rate limit burst must be >= 0, got %d", c.RateLimit.Burst)
	}
	return nil
}

// BackpressurePolicy 把配置的策略名转换为邮箱背压策略。
func (a ActorConfig) BackpressurePolicy() mailbox.BackpressurePolicy {
	switch a.Backpressure {
	case "block":
		return mailbox.BackpressureBlock
	case "drop_newest":
		return mailbox.BackpressureDropNewest
	default:
		return mailbox.BackpressureExpand
	}
}
