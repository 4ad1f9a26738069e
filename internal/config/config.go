// Package config loads the desired-state configuration for all modules
// from a TOML file. Every value has a working default so the tool runs
// without any config file at all.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// DefaultPath is consulted when no --config flag is given.
const DefaultPath = "/etc/hosttune/config.toml"

type NetworkConfig struct {
	CongestionControl string `mapstructure:"congestion_control"`
	Qdisc             string `mapstructure:"qdisc"`
	EnableMPTCP       bool   `mapstructure:"enable_mptcp"`
	RmemMax           int    `mapstructure:"rmem_max"`
	WmemMax           int    `mapstructure:"wmem_max"`
}

type SSHConfig struct {
	Port                int    `mapstructure:"port"`
	Service             string `mapstructure:"service"`
	PasswordAuth        bool   `mapstructure:"password_auth"`
	PermitRootLogin     string `mapstructure:"permit_root_login"`
	MaxAuthTries        int    `mapstructure:"max_auth_tries"`
	ClientAliveInterval int    `mapstructure:"client_alive_interval"`
}

type ZRAMConfig struct {
	Percent   int    `mapstructure:"percent"`
	Algorithm string `mapstructure:"algorithm"`
	Priority  int    `mapstructure:"priority"`
}

type DNSConfig struct {
	Upstreams []string `mapstructure:"upstreams"`
	Listen    string   `mapstructure:"listen"`
	CacheSize int      `mapstructure:"cache_size"`
}

type TimeSyncConfig struct {
	Service string   `mapstructure:"service"`
	Pools   []string `mapstructure:"pools"`
}

type LogConfig struct {
	Path       string `mapstructure:"path"` // rotating log file; empty = console only
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type RecordConfig struct {
	Path string `mapstructure:"path"`
}

type HistoryConfig struct {
	Path string `mapstructure:"path"` // sqlite database; empty disables history
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

type Config struct {
	Network  NetworkConfig  `mapstructure:"network"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	ZRAM     ZRAMConfig     `mapstructure:"zram"`
	DNS      DNSConfig      `mapstructure:"dns"`
	TimeSync TimeSyncConfig `mapstructure:"timesync"`
	Log      LogConfig      `mapstructure:"log"`
	Record   RecordConfig   `mapstructure:"record"`
	History  HistoryConfig  `mapstructure:"history"`
	Server   ServerConfig   `mapstructure:"server"`
}

// Default returns the built-in desired state.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			CongestionControl: "bbr",
			Qdisc:             "fq",
			EnableMPTCP:       true,
			RmemMax:           16777216,
			WmemMax:           16777216,
		},
		SSH: SSHConfig{
			Port:                22,
			Service:             "ssh",
			PasswordAuth:        false,
			PermitRootLogin:     "prohibit-password",
			MaxAuthTries:        3,
			ClientAliveInterval: 120,
		},
		ZRAM: ZRAMConfig{Percent: 50, Algorithm: "zstd", Priority: 100},
		DNS: DNSConfig{
			Upstreams: []string{"1.1.1.1", "8.8.8.8"},
			Listen:    "127.0.0.1",
			CacheSize: 1000,
		},
		TimeSync: TimeSyncConfig{
			Service: "chrony",
			Pools:   []string{"pool.ntp.org"},
		},
		Log:     LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 7},
		Record:  RecordConfig{Path: "/var/lib/hosttune/run.json"},
		History: HistoryConfig{Path: "/var/lib/hosttune/history.db"},
		Server:  ServerConfig{Listen: "127.0.0.1:8677", BasePath: "/api"},
	}
}

// Load reads TOML config from path, layered over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
