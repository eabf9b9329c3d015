package main

import (
	"log"
	"os"
	"path/filepath"

	"release-hub/internal/server/api"
	"release-hub/pkg/config"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	// 1. 计算默认路径 (基于可执行文件位置)
	ex, err := os.Executable()
	if err != nil {
		log.Fatal(err)
	}
	exPath := filepath.Dir(ex)

	defaultStorageDir := filepath.Join(exPath, "storage")
	defaultDBPath := filepath.Join(exPath, "release_hub.db")

	// 2. 命令行参数
	cfgFile := pflag.StringP("config", "c", "", "Config file")

	pflag.String("port", ":8080", "Listening port (e.g. :8080)")
	viper.BindPFlag("server.port", pflag.Lookup("port"))

	pflag.String("base_url", "http://127.0.0.1:8080", "Public base URL for manifest links")
	viper.BindPFlag("server.base_url", pflag.Lookup("base_url"))

	pflag.String("storage_dir", defaultStorageDir, "Local storage directory")
	viper.BindPFlag("storage.local_dir", pflag.Lookup("storage_dir"))

	pflag.String("db_path", defaultDBPath, "Path to SQLite database file")
	viper.BindPFlag("server.db_path", pflag.Lookup("db_path"))

	pflag.Parse()

	// 3. 加载配置
	cfg, err := config.LoadServerConfig(*cfgFile)
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	// 4. 本地模式确保存储目录存在
	if cfg.Storage.Type != "minio" {
		if err := os.MkdirAll(cfg.Storage.LocalDir, 0755); err != nil {
			log.Fatalf("Failed to create storage dir: %v", err)
		}
	}

	// 5. 启动
	if err := api.StartServer(cfg); err != nil {
		log.Fatal(err)
	}
}
