package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
)

func quoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Show the latest price and daily change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := client().Quote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(q)
			}
			fmt.Printf("%s  %s  %s\n", q.Symbol, dashboard.FormatPrice(q.Price), dashboard.FormatChange(q.ChangePercent))
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Show the last 7 daily closes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := client().History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(points)
			}
			for _, p := range points {
				fmt.Printf("%s  %s\n", p.Date, dashboard.FormatUSD(p.Close))
			}
			return nil
		},
	}
}

func newsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "news [SYMBOL]",
		Short: "Show company news, or market news without a symbol",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				articles []domain.Article
				err      error
			)
			if len(args) == 1 {
				articles, err = client().CompanyNews(cmd.Context(), args[0])
			} else {
				articles, err = client().MarketNews(cmd.Context())
			}
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(articles)
			}
			for _, a := range articles {
				fmt.Printf("%s\n  %s\n  %s\n\n", a.Headline, a.Summary, a.URL)
			}
			return nil
		},
	}
}

func portfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show cash balance and holdings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client().Portfolio(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(p)
			}
			printPortfolio(p)
			return nil
		},
	}
}

func printPortfolio(p domain.Portfolio) {
	fmt.Printf("Cash balance: %s\n", dashboard.FormatUSD(p.CashBalance))
	if len(p.Holdings) == 0 {
		fmt.Println("No holdings.")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSHARES\tPURCHASE\tVALUE")
	for _, h := range p.Holdings {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", h.Symbol, h.Quantity,
			dashboard.FormatUSD(h.PurchasePrice), dashboard.FormatUSD(h.TotalValue))
	}
	tw.Flush()
}

func buyCmd() *cobra.Command {
	var price string
	cmd := &cobra.Command{
		Use:   "buy SYMBOL QTY",
		Short: "Buy shares at --price, or at the current quote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			c := client()

			var p decimal.Decimal
			if price != "" {
				if p, err = decimal.NewFromString(price); err != nil {
					return fmt.Errorf("invalid price %q", price)
				}
			} else {
				q, err := c.Quote(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !q.HasPrice() {
					return fmt.Errorf("no current price for %s", q.Symbol)
				}
				p = q.Price.Decimal
			}

			resp, err := c.Buy(cmd.Context(), args[0], p, qty)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(resp)
			}
			fmt.Printf("Bought %s of %s at %s for %s.\n", dashboard.FormatShares(resp.Trade.Quantity),
				resp.Trade.Symbol, dashboard.FormatUSD(resp.Trade.Price), dashboard.FormatUSD(resp.Trade.Total))
			printPortfolio(resp.Portfolio)
			return nil
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "price per share (default: current quote)")
	return cmd
}

func sellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sell SYMBOL QTY",
		Short: "Sell shares at the current market price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			resp, err := client().Sell(cmd.Context(), args[0], qty)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(resp)
			}
			fmt.Printf("Sold %s of %s at %s for %s.\n", dashboard.FormatShares(resp.Trade.Quantity),
				resp.Trade.Symbol, dashboard.FormatUSD(resp.Trade.Price), dashboard.FormatUSD(resp.Trade.Total))
			printPortfolio(resp.Portfolio)
			return nil
		},
	}
}

func tradesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List executed trades, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := client().Trades(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(trades)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSIDE\tSYMBOL\tSHARES\tPRICE\tTOTAL")
			for _, t := range trades {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", t.ExecutedAt.Local().Format("2006-01-02 15:04:05"),
					t.Side, t.Symbol, t.Quantity, dashboard.FormatUSD(t.Price), dashboard.FormatUSD(t.Total))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum trades to list (0 = all)")
	return cmd
}

func valuationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "valuation",
		Short: "Value the holdings at current prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := client().Valuation(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(s)
			}
			fmt.Printf("Cash balance:        %s\n", dashboard.FormatUSD(s.Cash))
			fmt.Printf("Portfolio value:     %s\n", dashboard.FormatUSD(s.PortfolioValue))
			fmt.Printf("Total account value: %s\n", dashboard.FormatUSD(s.Total))
			for _, sym := range s.Failed {
				fmt.Printf("  %s: price unavailable\n", sym)
			}
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the starting balance and clear holdings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client().Reset(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(p)
			}
			printPortfolio(p)
			return nil
		},
	}
}
