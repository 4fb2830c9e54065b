package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/predator"
	"github.com/hupe1980/predator/config"
	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/internal/sales"
)

// ServeCmd publishes the market oracle over the a2a protocol.
type ServeCmd struct {
	Address string `short:"a" help:"Listen address (overrides config)"`
	Name    string `default:"market_oracle" help:"Agent name in the descriptor"`
}

// Run executes the command.
func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return err
	}
	if c.Address != "" {
		cfg.Server.Address = c.Address
		cfg.Server.PublicURL = "http://" + c.Address
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.serve(ctx, cfg)
}

func (c *ServeCmd) descriptor() core.AgentDescriptor {
	return core.AgentDescriptor{
		Name:        c.Name,
		Description: "External market intelligence provider.",
		Version:     version,
		Skills: []core.Skill{{
			ID:          "competitor_pricing",
			Name:        "Competitor pricing",
			Description: "Returns current market rates for a specific service.",
			Tags:        []string{"pricing", "market"},
		}},
	}
}

func (c *ServeCmd) serve(ctx context.Context, cfg config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := predator.New(
		predator.WithConfig(cfg),
		predator.WithOracle(sales.MarketOracle{}),
		predator.WithTools(sales.NewPricingTool()),
		predator.WithPrometheus(reg),
	)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           app.Server(c.descriptor()).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "Market Oracle is live on %s\n", cfg.Server.PublicURL)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
