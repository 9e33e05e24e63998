package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pepitohq/pepitobot/internal/app"
	"github.com/pepitohq/pepitobot/internal/config"
	"github.com/pepitohq/pepitobot/internal/status"
	"github.com/pepitohq/pepitobot/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "pepitobot",
	Short: "pepitobot - relays Pépito's cat door events to Telegram",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full relay (stream ingestor + processor + bot)",
	RunE:  runRelay,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print Pépito's current status from the event log",
	RunE:  runStatus,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config, images directory and database",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(runCmd, statusCmd, onboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("bot token not set. Run 'pepitobot onboard' or set PEPITO_BOT_TOKEN")
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	return a.Run(context.Background())
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer st.Close()
	if err := st.Init(); err != nil {
		return fmt.Errorf("init event store: %w", err)
	}

	snap, err := status.Current(st, time.Now())
	if err != nil {
		return fmt.Errorf("compute status: %w", err)
	}
	if snap == nil {
		fmt.Println("No recorded activity for Pépito yet.")
		return nil
	}

	location := "outside"
	if snap.Location == store.EventIn {
		location = "inside"
	}
	fmt.Printf("Location: %s\n", location)
	fmt.Printf("Since: %s\n", status.Timestamp(snap.Since))
	fmt.Printf("Duration: %s\n", status.FormatDuration(snap.CurrentDuration))
	if snap.HasLastTransition {
		fmt.Printf("Previous segment: %s\n", status.FormatDuration(snap.LastTransition))
	}
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.ImagesDir, 0755); err != nil {
		return fmt.Errorf("create images dir: %w", err)
	}
	fmt.Printf("Images directory ready: %s\n", cfg.Storage.ImagesDir)

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer st.Close()
	if err := st.Init(); err != nil {
		return fmt.Errorf("init event store: %w", err)
	}
	fmt.Printf("Database ready: %s\n", cfg.Storage.DBPath)

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set the bot token and audience\n", cfgPath)
	fmt.Println("  2. Or set PEPITO_BOT_TOKEN / PEPITO_AUTHORIZED_USERS")
	fmt.Println("  3. Run 'pepitobot run'")
	return nil
}
