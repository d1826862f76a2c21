package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gearshop/pkg/api"
	"gearshop/pkg/assistant"
	"gearshop/pkg/catalog"
	"gearshop/pkg/clients/openai"
	"gearshop/pkg/config"
	"gearshop/pkg/logging"
	"gearshop/pkg/metrics"
	"gearshop/pkg/prompting"
	"gearshop/pkg/recommend"
	"gearshop/pkg/session"
)

// app holds everything built from configuration.
type app struct {
	cfg       config.Config
	catalog   *catalog.Catalog
	reg       *metrics.Registry
	sessions  *session.Registry
	assistant *assistant.Service
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config failed: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	mode, err := prompting.ParseMode(cfg.Assistant.Mode)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog load failed: %w", err)
	}
	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; shopping assistant requests will fail")
	}

	reg := metrics.NewRegistry()
	sessions := session.NewRegistry(cfg.Assistant.SessionTTL, reg)
	svc := assistant.New(cat, openai.NewFromConfig(cfg), mode, sessions, reg)

	return &app{cfg: cfg, catalog: cat, reg: reg, sessions: sessions, assistant: svc}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gearshop",
		Short:         "Outdoor gear storefront API with a shopping assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newRecommendCmd(), newAskCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handlers := api.NewHandlers(a.catalog, a.assistant, a.reg, a.cfg.Assistant.RecommendLimit)
	server := api.NewServer(handlers, a.reg)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", a.cfg.Server.Address).
			Int("products", a.catalog.Len()).
			Str("mode", string(a.assistant.Mode())).
			Msg("server starting")
		errCh <- server.Start(a.cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return server.Shutdown(shutdownCtx)
}

func newRecommendCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recommend <product-id>...",
		Short: "List products that pair well with the given products",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			seeds := a.catalog.Resolve(args)
			if len(seeds) == 0 {
				return fmt.Errorf("none of %s are in the catalog", strings.Join(args, ", "))
			}
			if limit <= 0 {
				limit = recommend.DefaultLimit
			}
			ranked := recommend.Rank(seeds, a.catalog.All())
			for _, r := range ranked[:min(limit, len(ranked))] {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %3d  %s\n", r.Product.ID, r.Score, r.Product.Name)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", recommend.DefaultLimit, "maximum number of recommendations")
	return cmd
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the shopping assistant and stream its reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			stream, err := a.assistant.Ask(ctx, "", strings.Join(args, " "))
			if err != nil {
				return err
			}
			defer stream.Close()

			out := cmd.OutOrStdout()
			var reply strings.Builder
			for stream.Next() {
				reply.WriteString(stream.Text())
				fmt.Fprint(out, stream.Text())
			}
			fmt.Fprintln(out)
			if err := stream.Err(); err != nil {
				return err
			}

			answer := a.assistant.Resolve(ctx, reply.String())
			if len(answer.Products) == 0 {
				fmt.Fprintln(out, "No catalog products were referenced.")
				return nil
			}
			fmt.Fprintln(out, "\nRecommended products:")
			for _, p := range answer.Products {
				fmt.Fprintf(out, "  %-24s $%8.2f  %s\n", p.ID, p.Price, p.Name)
			}
			return nil
		},
	}
}
