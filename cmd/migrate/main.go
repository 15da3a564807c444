package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"picolink/internal/config"
	"picolink/internal/db"
	"picolink/internal/logging"
	"picolink/internal/migrate"
)

var version = "dev"
var appName = "picolink-migrate"

const usage = `usage: %s <command>
  migrate  apply pending schema migrations
  status   list pending migrations
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadReceiver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg.Common, version, appName))

	conn, err := db.Open(cfg, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	ctx := context.Background()
	switch os.Args[1] {
	case "migrate":
		if err := migrate.Run(ctx, conn); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")
	case "status":
		pending, err := migrate.Pending(ctx, conn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "status: %v\n", err)
			os.Exit(1)
		}
		if len(pending) == 0 {
			fmt.Println("up to date")
			return
		}
		for _, p := range pending {
			fmt.Println("pending", p)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}
