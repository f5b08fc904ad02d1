package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdp/qrterminal/v3"

	"github.com/blockedby/channel-history/internal/config"
	"github.com/blockedby/channel-history/internal/database"
	"github.com/blockedby/channel-history/internal/logger"
	"github.com/blockedby/channel-history/internal/telegram"
)

func main() {
	printString := flag.Bool("print-string", false, "print the session as TG_SESSION_STRING after login")
	flag.Parse()

	fmt.Println("=== telegram auth tool ===")
	fmt.Println("scan the QR code with telegram: settings > devices > link desktop device")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.HasTelegramCredentials() {
		fmt.Println("error: TG_API_ID and TG_API_HASH are required (https://my.telegram.org)")
		os.Exit(1)
	}
	// the QR login writes to the session database, never to the string
	cfg.TGSessionStr = ""

	if err := logger.Init(cfg.LogLevel, cfg.LogFile, cfg.LogJSON); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *printString); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\ncanceled")
			os.Exit(130)
		}
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, printString bool) error {
	var pg *database.DB
	if cfg.DatabaseURL != "" {
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		pg = db
	}

	sessions, err := database.SessionStore(pg, cfg.SessionDBPath)
	if err != nil {
		return err
	}
	if pg == nil {
		defer database.CloseGORM(sessions)
	}

	manager := telegram.NewManager(cfg, sessions)
	if err := manager.Init(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	err = manager.StartQR(ctx, func(url string) {
		fmt.Println()
		qrterminal.GenerateHalfBlock(url, qrterminal.L, os.Stdout)
		fmt.Println("waiting for scan, the code refreshes automatically...")
	})
	switch {
	case errors.Is(err, telegram.ErrAlreadyLoggedIn):
		fmt.Println("✓ a session is already stored, nothing to do")
	case err != nil:
		return err
	default:
		fmt.Println("\n✓ authentication successful!")
	}

	client := manager.GetClient()
	if client == nil {
		return errors.New("session stored but the client did not start")
	}
	fmt.Printf("logged in as: @%s\n", client.Self.Username)
	if cfg.DatabaseURL != "" {
		fmt.Println("session saved to postgres (DATABASE_URL)")
	} else {
		fmt.Printf("session saved to %s\n", cfg.SessionDBPath)
	}

	if printString {
		s, err := client.ExportStringSession()
		if err != nil {
			return fmt.Errorf("export session: %w", err)
		}
		fmt.Println("\nyour session string:")
		fmt.Println("---")
		fmt.Println(s)
		fmt.Println("---")
		fmt.Println("\n⚠️  keep this secret! it provides full access to your telegram account")
	}
	return nil
}
