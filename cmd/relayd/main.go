package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matst80/spectroconnect/internal/obs"
	"github.com/matst80/spectroconnect/internal/ratelimit"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "relayd",
	Short:        "Gateway that splices `relay <host> <port>` connections to their target",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(parent context.Context) error {
	obs.Setup(obs.Options{Debug: cfg.Debug})
	if err := cfg.parseAllow(); err != nil {
		return err
	}
	obs.Info("relayd.start", obs.Fields{"listen": cfg.ListenAddr, "metrics": cfg.MetricsAddr, "allow": cfg.Allow})

	state, err := newStateStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		obs.Error("state.init", obs.Fields{"err": err.Error()})
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		obs.Error("listen.relay", obs.Fields{"err": err.Error(), "addr": cfg.ListenAddr})
		return err
	}
	defer ln.Close()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = newMetricsServer(cfg.MetricsAddr, state)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				obs.Error("metrics.server", obs.Fields{"err": err.Error(), "addr": cfg.MetricsAddr})
			}
		}()
	}
	if rs, ok := state.(*redisStateStore); ok {
		go rs.startMaintenance(ctx)
	}

	limiter := ratelimit.NewLimiter(cfg.GlobalRate, cfg.TargetRate, cfg.Burst)
	go runPruneLoop(ctx, limiter, state, cfg.PruneInterval)

	gw := newGateway(state, limiter, &cfg)
	acceptDone := make(chan struct{})
	go func() { defer close(acceptDone); gw.acceptRelays(ctx, ln) }()

	state.setReady(true)
	obs.Info("relayd.ready", obs.Fields{"addr": ln.Addr().String()})

	<-ctx.Done()
	obs.Info("relayd.shutdown.signal", obs.Fields{})
	state.setClosing(true)
	_ = ln.Close()
	<-acceptDone
	closed := state.closeAll()
	gw.wait()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	obs.Info("relayd.shutdown.complete", obs.Fields{"closed_relays": closed})
	return nil
}
