package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/espasatel/espasatel/internal/config"
	"github.com/espasatel/espasatel/internal/lead"
	"github.com/espasatel/espasatel/internal/litemode"
	"github.com/espasatel/espasatel/internal/monitoring"
	"github.com/espasatel/espasatel/internal/resilience"
	"github.com/espasatel/espasatel/internal/server"
	"github.com/espasatel/espasatel/pkg/telegram"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and lead relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		startup := time.Duration(cfg.Server.StartupTimeoutSecs) * time.Second
		grace := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
		return serveWithin(ctx, startup, grace, func() (*http.Server, error) {
			handler, err := buildHandler(cfg)
			if err != nil {
				return nil, err
			}
			return &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}, nil
		})
	},
}

// buildHandler wires the relay and every component into the router.
func buildHandler(c *config.Config) (http.Handler, error) {
	comps, err := loadComponents(c)
	if err != nil {
		return nil, err
	}

	origins, err := lead.NewOriginPolicy(c.Relay.AllowedOrigins, c.Relay.AllowedOriginPatterns)
	if err != nil {
		return nil, err
	}

	breakerCfg := resilience.BreakerFrom(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs)
	// Permanent Bot API errors count: a bad token or chat id fails every lead.
	breakerCfg.Counts = resilience.CountsFailure
	alerter := monitoring.NewAlerter(c.Monitoring.WebhookURL)
	breakerCfg.OnChange = func(from, to resilience.State) {
		zap.L().Warn("relay circuit changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		// OnChange runs under the breaker lock.
		if alert, ok := alerter.CircuitChange(from.String(), to.String(), breakerCfg.Threshold); ok && alerter.Enabled() {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				alerter.Send(ctx, alert)
			}()
		}
	}
	relay := lead.NewTelegramRelay(
		telegram.NewClient(c.Relay.TelegramToken, telegram.WithBaseURL(c.Relay.BaseURL)),
		c.Relay.ChatID,
		time.Duration(c.Relay.TimeoutSecs)*time.Second,
		resilience.PolicyFrom(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs, c.Retry.Multiplier, c.Retry.JitterFraction),
		resilience.NewBreaker(breakerCfg),
	)

	return server.New(server.Deps{
		Catalog:        comps.catalog,
		Graph:          comps.graph,
		Classifier:     comps.classifier,
		Cookies:        comps.cookies,
		FailsafeBudget: time.Duration(c.LiteMode.FailsafeSecs) * time.Second,
		Origins:        origins,
		Leads:          lead.NewHandler(relay, origins, lead.NewLimiter(c.RateLimit.PerMinute, c.RateLimit.Burst, c.RateLimit.MaxClients), c.Relay.FallbackPhone),
		BaseURL:        c.Server.BaseURL,
		TrustProxy:     c.Server.TrustProxyHeaders,
	}), nil
}

// serveWithin builds and starts the server under a startup budget. If the
// listener is not bound in time the server is stopped and an error returned.
func serveWithin(ctx context.Context, budget, grace time.Duration, build func() (*http.Server, error)) error {
	if budget <= 0 {
		budget = time.Minute
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchdog := litemode.StartFailsafe(budget, func() {
		zap.L().Error("serve: not ready within startup budget", zap.Duration("budget", budget))
		cancel()
	})
	defer watchdog.Stop()

	srv, err := build()
	if err != nil {
		return err
	}
	err = runServer(ctx, srv, grace, func() { watchdog.MarkReady() })
	if watchdog.Outcome() == litemode.TimedOut {
		return eris.Errorf("serve: not listening within %s", budget)
	}
	return err
}

// runServer binds srv.Addr, calls ready once listening, and serves until ctx
// is cancelled, then drains in-flight requests for at most grace.
func runServer(ctx context.Context, srv *http.Server, grace time.Duration, ready func()) error {
	if grace <= 0 {
		grace = 10 * time.Second
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return eris.Wrap(err, "server listen")
	}
	if ready != nil {
		ready()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	})
	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
