package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/geocoder89/stockroom/internal/config"
	"github.com/geocoder89/stockroom/internal/db"
	"github.com/geocoder89/stockroom/internal/observability"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|reset")
	flag.Parse()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env).With("cmd", *cmd)

	ctx, cancel := config.WithTimeout(2 * time.Minute)
	defer cancel()

	if err := db.RunMigrations(ctx, cfg.DBURL, *cmd); err != nil {
		log.Error("migration failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log.Info("migration finished")
}
