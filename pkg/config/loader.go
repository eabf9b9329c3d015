package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadServerConfig 加载服务配置
func LoadServerConfig(cfgFile string) (*Config, error) {
	// 1. 获取全局 Viper 实例 (包含 main.go 里绑定的命令行参数)
	v := viper.GetViper()

	// 2. 设置兜底默认值 (仅设置那些命令行里没绑定过的)
	v.SetDefault("server.base_url", "http://127.0.0.1:8080")
	v.SetDefault("server.api_timeout", "10s")
	v.SetDefault("server.max_upload_bytes", 500*1024*1024)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.op_timeout", "30s")
	// MinIO 默认值
	v.SetDefault("storage.minio.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.minio.ak", "minioadmin")
	v.SetDefault("storage.minio.sk", "minioadmin")
	v.SetDefault("storage.minio.bucket", "release-hub")

	v.SetDefault("release.channel", "alpha")
	v.SetDefault("release.product_name", "omnial")
	v.SetDefault("release.update_format", "tauri")
	v.SetDefault("release.update_suffix", ".tar.gz")
	v.SetDefault("release.list_concurrency", 8)
	v.SetDefault("release.offer_latest_on_bad_version", false)
	v.SetDefault("release.passcode_ttl", "24h")

	v.SetDefault("auth.secret_key", "alpha-tester")

	// 3. 绑定环境变量
	v.SetEnvPrefix("RELEASE_HUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 读取配置文件 (如果有)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file failed: %v", err)
			}
			fmt.Printf("Config file specified but not found: %s (using flags/defaults)\n", cfgFile)
		} else {
			fmt.Printf("Loaded config from: %s\n", v.ConfigFileUsed())
		}
	} else {
		// 尝试默认路径 (可选)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err == nil {
			fmt.Printf("Loaded default config: %s\n", v.ConfigFileUsed())
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
