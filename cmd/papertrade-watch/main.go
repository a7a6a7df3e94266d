package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
	"papertrade/internal/live"
	"papertrade/internal/util"
)

func main() {
	_ = godotenv.Load()

	addr := "localhost:50051"
	if a := os.Getenv("PAPERTRADE_GRPC_ADDR"); a != "" {
		addr = a
	}

	logger := util.NewLoggerTo(os.Stderr, os.Getenv("PAPERTRADE_LOG_LEVEL"), "text")

	client, err := live.Dial(addr, logger)
	if err != nil {
		logger.Error("dialing server", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	portfolio, err := client.Portfolio(ctx)
	if err != nil {
		logger.Error("fetching portfolio", "error", err)
		os.Exit(1)
	}
	summary := dashboard.Summarize(portfolio.CashBalance, domain.Valuation{})
	printScreen(portfolio, summary, "waiting for first valuation")

	err = client.Watch(ctx, func(u dashboard.Update) {
		switch u.Type {
		case dashboard.UpdateValuation:
			if u.Summary != nil {
				summary = *u.Summary
			}
			printScreen(portfolio, summary, "")
		case dashboard.UpdateLedger:
			if u.Event == nil {
				return
			}
			portfolio = u.Event.Portfolio
			note := u.Event.Type
			if t := u.Event.Trade; t != nil {
				note = fmt.Sprintf("%s %s %s @ %s", t.Side, dashboard.FormatShares(t.Quantity),
					t.Symbol, dashboard.FormatUSD(t.Price))
			}
			summary.Cash = portfolio.CashBalance
			summary.Total = summary.Cash.Add(summary.PortfolioValue)
			printScreen(portfolio, summary, note)
		}
	})
	if err != nil {
		logger.Error("stream error", "error", err)
		os.Exit(1)
	}
	fmt.Println("\nshutdown")
}

func printScreen(p domain.Portfolio, s dashboard.Summary, note string) {
	fmt.Print("\033[H\033[2J")
	fmt.Printf("Paper Portfolio  %s\n\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	fmt.Printf("  %-22s %14s\n", "Cash balance", dashboard.FormatUSD(s.Cash))
	fmt.Printf("  %-22s %14s\n", "Portfolio value", dashboard.FormatUSD(s.PortfolioValue))
	fmt.Printf("  %-22s %14s\n", "Total account value", dashboard.FormatUSD(s.Total))
	if !s.ValuedAt.IsZero() {
		fmt.Printf("  %-22s %14s\n", "Valued at", s.ValuedAt.Local().Format("15:04:05"))
	}
	for _, sym := range s.Failed {
		fmt.Printf("  %s: price unavailable\n", sym)
	}

	fmt.Printf("\n  %-8s %10s %14s %14s\n", "Symbol", "Shares", "Purchase", "Value")
	if len(p.Holdings) == 0 {
		fmt.Println("  (no holdings)")
	}
	for _, h := range p.Holdings {
		fmt.Printf("  %-8s %10s %14s %14s\n", h.Symbol, dashboard.FormatInt(h.Quantity),
			dashboard.FormatUSD(h.PurchasePrice), dashboard.FormatUSD(h.TotalValue))
	}

	if note != "" {
		fmt.Printf("\n  %s\n", note)
	}
}
