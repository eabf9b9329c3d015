package config

import (
	"time"
)

// ================= Server Config =================

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Release ReleaseConfig `mapstructure:"release"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	BaseURL        string        `mapstructure:"base_url"` // Manifest 下载链接的绝对前缀 (如 https://releases.example.com)
	DBPath         string        `mapstructure:"db_path"`
	APITimeout     time.Duration `mapstructure:"api_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type StorageConfig struct {
	Type      string        `mapstructure:"type"` // "local" or "minio"
	LocalDir  string        `mapstructure:"local_dir"`
	OpTimeout time.Duration `mapstructure:"op_timeout"` // 单次后端调用超时
	Minio     MinioConfig   `mapstructure:"minio"`
}

type MinioConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	AK       string `mapstructure:"ak"`
	SK       string `mapstructure:"sk"`
	Bucket   string `mapstructure:"bucket"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// ReleaseConfig 版本目录与解析相关配置
type ReleaseConfig struct {
	Channel                 string        `mapstructure:"channel"`       // 发布通道 (如 alpha)
	ProductName             string        `mapstructure:"product_name"`  // 制品文件名前缀 (如 omnial)
	UpdateFormat            string        `mapstructure:"update_format"` // 自动更新包所在的 format 目录 (如 tauri)
	UpdateSuffix            string        `mapstructure:"update_suffix"` // 更新包文件名后缀 (如 .tar.gz)
	ListConcurrency         int           `mapstructure:"list_concurrency"`
	OfferLatestOnBadVersion bool          `mapstructure:"offer_latest_on_bad_version"` // 客户端版本号不合法时按 0.0.0 处理
	PasscodeTTL             time.Duration `mapstructure:"passcode_ttl"`                // 下载口令有效期
}

type AuthConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}
