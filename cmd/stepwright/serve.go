package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rahul/stepwright/internal/gateway"
	"github.com/rahul/stepwright/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer requests from the Telegram gateway",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	tgCfg, ok := cfg.GetTelegramConfig()
	if !ok {
		return fmt.Errorf("telegram gateway is not enabled or token is missing")
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	observability.PrintBanner()
	observability.InitializeTerminal()
	defer observability.CleanupTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	tg, err := gateway.NewTelegramGateway(tgCfg.Token, a.agent)
	if err != nil {
		return err
	}
	if len(tgCfg.AllowedChats) > 0 {
		tg.AllowedChats = make(map[int64]bool, len(tgCfg.AllowedChats))
		for _, id := range tgCfg.AllowedChats {
			tg.AllowedChats[id] = true
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if w := a.watcher(); w != nil {
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Printf("Warning: schema watcher stopped: %v", err)
			}
		}()
	}

	// Live status line (1-second updates)
	go tick(ctx, time.Second, observability.PrintLiveStatus)
	go tick(ctx, 30*time.Second, func() {
		observability.Heartbeat()
		a.logger.LogHeartbeat()
	})

	go func() {
		if err := tg.Start(); err != nil {
			log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
			stop()
		}
	}()

	<-ctx.Done()
	tg.Stop()
	log.Println("\033[95m[ EXIT ] CORE DE-INITIALIZED. GOODBYE.\033[0m")
	return nil
}

func tick(ctx context.Context, every time.Duration, f func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f()
		}
	}
}
