package main

import (
	"flag"
	"log"

	"quiz_platform_backend/internal/app"
	"quiz_platform_backend/internal/config"
	"quiz_platform_backend/pkg/configwatcher"
)

// @title 在线测验平台 API
// @version 1.0
// @description 在线测验平台后端：测验管理、答题引擎、成绩统计
// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description 请输入 "Bearer {token}"

func main() {
	migrate := flag.Bool("migrate", false, "force database migration on startup")
	migrateOnly := flag.Bool("migrate-only", false, "run database migration and exit")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)

	// 配置文件热更新
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		if c, ok := newCfg.(*config.Config); ok {
			application.ReloadConfig(c)
		}
	})

	application.Run()
}
