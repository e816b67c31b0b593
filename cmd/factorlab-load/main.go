// factorlab-load fills the static market-data tables from CSV files.
// Everything downstream (exposures, tests, signals) is computed by the
// pipeline; this tool only covers the inputs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"factorlab/internal/config"
	"factorlab/internal/database"
	"factorlab/internal/tabular"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
		table      = flag.String("table", "", "target table: trading_calendar, major_return, equity_index, em01_major, hld_pos, dlt_pos")
		file       = flag.String("file", "", "CSV file to load, header row names the columns")
	)
	flag.Parse()

	if *table == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

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

	store := tabular.NewStore(db, tabular.NewRegistry(&cfg.Research))
	n, err := store.IngestCSV(context.Background(), *table, *file)
	if err != nil {
		fatal("载入失败: %v", err)
	}
	fmt.Printf("loaded %d rows into %s\n", n, *table)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
