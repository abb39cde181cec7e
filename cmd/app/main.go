package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"sudo_thrust/internal/app"

	"github.com/spf13/cobra"

	_ "net/http/pprof" // For pprof profiling
)

var (
	cfgFile     string
	enablePprof bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "thrust",
		Short:        "Leveraged perpetuals trading terminal",
		Long:         `A trading terminal for perpetual markets with a live price feed, simulated fallback and a browser UI`,
		SilenceUsage: true,
		RunE:         runTerminal,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "config file")
	rootCmd.Flags().BoolVar(&enablePprof, "pprof", false, "serve pprof on localhost:6060")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "markets",
		Short: "Fetch and print the market list",
		RunE:  runMarkets,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runTerminal(cmd *cobra.Command, args []string) error {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(cfgFile); err != nil {
		return fmt.Errorf("bootstrapping failed: %w", err)
	}
	defer bootstrap.Close()

	if enablePprof {
		go func() {
			// Localhost only for security
			slog.Info("Pprof server started on localhost:6060")
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	terminal := app.NewTerminal(bootstrap.Config, bootstrap.Storage, bootstrap.Downloader, nil)
	if err := terminal.Run(ctx); err != nil {
		slog.Error("Terminal stopped with error", slog.Any("error", err))
		return err
	}

	slog.Info("Shut down gracefully")
	return nil
}

func runMarkets(cmd *cobra.Command, args []string) error {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(cfgFile); err != nil {
		return fmt.Errorf("bootstrapping failed: %w", err)
	}
	defer bootstrap.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	markets, origin := bootstrap.FetchMarkets(ctx)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "SYMBOL\tSTATUS\tTICK\tSTEP\tMIN QTY\tLAST\n")
	for _, m := range markets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%g\n",
			m.Symbol, m.Status, m.TickSize.String(), m.StepSize.String(), m.MinQty.String(), m.LastPrice)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d markets (source: %s)\n", len(markets), origin)
	return nil
}
