package config

import (
	"fmt"
	"os"
	"time"

	syncer "adbsync/internal/sync"

	"gopkg.in/yaml.v3"
)

// Config 对应 config.yaml 的根结构
type Config struct {
	Sync   SyncConfig   `yaml:"sync"`
	ADB    ADBConfig    `yaml:"adb"`
	System SystemConfig `yaml:"system"`
}

// PairConfig 一组同步路径
type PairConfig struct {
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`
}

// SyncConfig 同步相关配置
type SyncConfig struct {
	Pairs     []PairConfig `yaml:"pairs"`
	Reverse   bool         `yaml:"reverse"`    // 从设备拉取
	TwoWay    bool         `yaml:"two_way"`    // 双向同步，按修改时间决定方向
	Delete    bool         `yaml:"delete"`     // 删除目标端多余的文件
	Force     bool         `yaml:"force"`      // 允许文件和目录互相替换
	NoClobber bool         `yaml:"no_clobber"` // 禁止覆盖已有文件
	CopyLinks bool         `yaml:"copy_links"`
	DryRun    bool         `yaml:"dry_run"`
	DelSource bool         `yaml:"del_source"`
	// 格式 yymmdd[.hhmmss]-yymmdd[.hhmmss]，任意一端为空或 0 表示不限
	TimeRange string   `yaml:"time_range"`
	Excludes  []string `yaml:"excludes"`
	// skip (默认): 跳过并警告
	// prefer_local: 以本地为准
	// prefer_remote: 以设备为准
	// abort: 终止任务
	KindConflict string `yaml:"kind_conflict"`
}

// ADBConfig adb 连接参数，对应 adb 的全局选项
type ADBConfig struct {
	Command  string `yaml:"command"`
	Device   bool   `yaml:"device"`
	Emulator bool   `yaml:"emulator"`
	Serial   string `yaml:"serial"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	// 设备 ls 输出所用的时区，为空时使用本机时区
	Timezone string `yaml:"timezone"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	// 任务日志数据库路径，为空则不记录
	Journal string `yaml:"journal"`
}

// Default 没有配置文件时使用的默认值
func Default() *Config {
	return &Config{
		Sync:   SyncConfig{KindConflict: syncer.KindConflictSkip.String()},
		ADB:    ADBConfig{Command: "adb"},
		System: SystemConfig{LogLevel: "info"},
	}
}

// LoadConfig 读取并解析配置文件，未填写的字段使用默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 格式错误: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验取值是否合法，选项之间的组合由 Policy.Validate 检查
func (c *Config) Validate() error {
	if _, err := syncer.ParseKindConflictPolicy(c.Sync.KindConflict); err != nil {
		return fmt.Errorf("sync.kind_conflict: %w", err)
	}
	if _, err := ParseTimeRange(c.Sync.TimeRange, time.Local); err != nil {
		return fmt.Errorf("sync.time_range: %w", err)
	}
	if _, err := c.ADB.Location(); err != nil {
		return fmt.Errorf("adb.timezone: %w", err)
	}
	for i, p := range c.Sync.Pairs {
		if p.Local == "" || p.Remote == "" {
			return fmt.Errorf("sync.pairs[%d]: local and remote are required", i)
		}
	}
	return nil
}

// Location 设备时区
func (a *ADBConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

// ToPolicy 将配置转换为同步策略
func (c *Config) ToPolicy() (syncer.Policy, error) {
	s := c.Sync
	p := syncer.DefaultPolicy()
	p.LocalToRemote = true
	p.RemoteToLocal = s.TwoWay
	if s.Reverse {
		p.LocalToRemote, p.RemoteToLocal = p.RemoteToLocal, p.LocalToRemote
	}
	p.DeleteMissing = s.Delete
	p.AllowReplace = s.Force
	p.AllowOverwrite = !s.NoClobber
	p.CopyLinks = s.CopyLinks
	p.DryRun = s.DryRun
	p.DelSource = s.DelSource
	p.Excludes = s.Excludes

	kc, err := syncer.ParseKindConflictPolicy(s.KindConflict)
	if err != nil {
		return p, err
	}
	p.KindConflict = kc

	tr, err := ParseTimeRange(s.TimeRange, time.Local)
	if err != nil {
		return p, err
	}
	p.TimeRange = tr

	if err := p.Validate(); err != nil {
		return p, err
	}
	p.Normalize()
	return p, nil
}
