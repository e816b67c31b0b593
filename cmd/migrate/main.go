package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"factorlab/internal/config"
	"factorlab/internal/database"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
		up         = flag.Bool("up", false, "运行数据库迁移")
		down       = flag.Bool("down", false, "回滚最近一次迁移")
		version    = flag.Bool("version", false, "显示当前迁移版本")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("加载配置文件失败: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		fatal("连接数据库失败: %v", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, cfg.Research.MigrationsPath)
	if err != nil {
		fatal("创建迁移器失败: %v", err)
	}

	switch {
	case *up:
		if err := migrator.Up(); err != nil {
			fatal("迁移失败: %v", err)
		}
		fmt.Println("migrations applied")
	case *down:
		if err := migrator.Down(); err != nil {
			fatal("回滚失败: %v", err)
		}
		fmt.Println("last migration rolled back")
	case *version:
		v, err := migrator.Version()
		if err != nil {
			fatal("读取版本失败: %v", err)
		}
		fmt.Printf("migration version: %d\n", v)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
