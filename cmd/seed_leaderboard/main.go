package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"

	"tradeSimServer/config"
	"tradeSimServer/db"
	"tradeSimServer/engine"
	"tradeSimServer/game"
	"tradeSimServer/state"
)

var configFile = flag.String("f", "etc/tradesim.yaml", "the config file")

// step is one scripted move: the owner sets a price, then players act.
type step struct {
	price   float64
	actions map[string]game.ActionKind
}

func fatalf(format string, args ...any) {
	logx.Errorf("❌ "+format, args...)
	logx.Close()
	os.Exit(1)
}

func main() {
	flag.Parse()

	// Load env
	if err := godotenv.Load(); err != nil {
		logx.Info("⚠️ .env not found")
	}

	cfg := config.MustLoad(*configFile)
	if cfg.Postgres.DSN == "" {
		fatalf("Postgres.DSN not set")
	}

	// Init postgres
	if err := db.InitPostgres(cfg.Postgres.DSN); err != nil {
		fatalf("Failed to init postgres: %v", err)
	}
	defer db.ClosePostgres()

	ctx := context.Background()

	// Play a short scripted session so the archive holds realistic rows
	e := engine.New(state.NewRegistry(), cfg.Game)
	e.StartSession("seed-room", "seed-owner", e.Defaults())

	script := []step{
		{100, map[string]game.ActionKind{"seed-alice": game.ActionOpenLong, "seed-bob": game.ActionOpenShort, "seed-carol": game.ActionOpenLong}},
		{112, map[string]game.ActionKind{"seed-alice": game.ActionDouble, "seed-bob": game.ActionReverse}},
		{125, map[string]game.ActionKind{"seed-alice": game.ActionTrim, "seed-carol": game.ActionClose}},
		{118, map[string]game.ActionKind{"seed-dave": game.ActionOpenShort, "seed-carol": game.ActionOpenShort}},
		{131, nil},
	}

	fmt.Println("Seeding leaderboard with a scripted session...")

	for _, s := range script {
		update, err := e.AdvancePrice("seed-room", "seed-owner", s.price)
		if err != nil {
			fatalf("Failed to set price %.2f: %v", s.price, err)
		}
		for _, name := range update.Liquidated {
			fmt.Printf("  %s liquidated at %.2f\n", name, s.price)
		}
		for player, kind := range s.actions {
			msg, err := e.ApplyAction("seed-room", player, player, kind)
			if err != nil {
				msg = engine.UserMessage(err)
			}
			fmt.Printf("  @%.2f %s %s: %s\n", s.price, player, kind, msg)
		}
	}

	update, err := e.AdvancePrice("seed-room", "seed-owner", config.EndSessionPrice)
	if err != nil {
		fatalf("Failed to end session: %v", err)
	}

	if err := db.ArchiveSession(ctx, *update.Final, time.Now()); err != nil {
		fatalf("Failed to archive session: %v", err)
	}

	fmt.Println("\nDone! Testing leaderboard...")

	// Verify
	records, err := db.GetPlayerPnLLeaderboard(ctx, 20)
	if err != nil {
		fatalf("Failed to get leaderboard: %v", err)
	}

	fmt.Printf("\nLeaderboard (%d entries):\n", len(records))
	for _, r := range records {
		fmt.Printf("  #%d %s %.2f (%d sessions)\n", r.Rank, r.DisplayName, r.Amount, r.Sessions)
	}
}
