package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"kosmo-admin/common/database"
	"kosmo-admin/common/logger"
	"kosmo-admin/internal/config"
	"kosmo-admin/migrations"

	"go.uber.org/zap"
)

// 无参数时执行内置迁移，-list 只列出迁移文件
func main() {
	if len(os.Args) > 1 && os.Args[1] == "-list" {
		names, err := migrations.Names()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list migrations: %v\n", err)
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, "console", "apply-migration")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Cannot connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := migrations.Apply(ctx, db, log); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Migration completed", zap.String("database", cfg.Database.Database))
}
