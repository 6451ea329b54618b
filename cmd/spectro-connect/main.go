package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/matst80/spectroconnect/internal/inventory"
	"github.com/matst80/spectroconnect/internal/launcher"
	"github.com/matst80/spectroconnect/internal/obs"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// options are the per invocation flags.
type options struct {
	configPath string
	gatewayIP  string
	port       int
	localPort  int
	proxy      bool
	telnet     bool
	verbose    bool
	user       string
	redis      string
	cacheTTL   time.Duration
	metrics    string
}

var opts options

var rootCmd = &cobra.Command{
	Use:           "spectro-connect HOST",
	Short:         "Connect to a remote device through SpectroServer",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		obs.Setup(obs.Options{Console: true, Debug: opts.verbose, Out: os.Stderr})
		if err := loadDotEnv(); err != nil {
			return err
		}
		c, err := loadConfig(opts.configPath, os.Getenv)
		if err != nil {
			return err
		}
		applyFlags(cmd, &c, &opts)
		a, err := newApp(c, opts, launcher.ForPlatform(runtime.GOOS), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return a.run(cmd.Context(), args[0])
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&opts.gatewayIP, "spectro_ip", "s", "", "IP address of SpectroServer (default $SPECTROSERVER_HOST)")
	f.IntVarP(&opts.port, "port", "p", 0, "port to connect to on remote device (default by protocol)")
	f.IntVarP(&opts.localPort, "local_port", "l", 0, "local port to use for local proxy socket (0 = any free port)")
	f.BoolVarP(&opts.proxy, "proxy", "x", false, "just provide a local proxy socket")
	f.BoolVarP(&opts.telnet, "telnet", "t", false, "connect using Telnet")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	f.StringVarP(&opts.user, "user", "u", "", "SSH username (prompted for when empty)")
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	f.StringVar(&opts.redis, "redis", "", "redis address for caching inventory lookups (default $SPECTRO_REDIS_ADDR)")
	f.DurationVar(&opts.cacheTTL, "cache-ttl", 0, "lifetime of cached inventory lookups (default $SPECTRO_CACHE_TTL or 1h)")
	f.StringVar(&opts.metrics, "metrics", "", "serve Prometheus metrics on this address while connected")
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cmd *cobra.Command, c *Config, o *options) {
	if o.gatewayIP != "" {
		c.GatewayHost = o.gatewayIP
	}
	if o.user != "" {
		c.Username = o.user
	}
	if o.redis != "" {
		c.Cache.Addr = o.redis
	}
	if o.cacheTTL > 0 {
		c.Cache.TTL = o.cacheTTL
	}
	if cmd.Flags().Changed("metrics") {
		c.MetricsAddr = o.metrics
	}
}

const (
	colorWarn  = "\033[93m"
	colorReset = "\033[0m"
)

// reportError prints err for a person, listing candidates for ambiguous names.
func reportError(w io.Writer, err error, color bool) {
	warn, reset := "", ""
	if color {
		warn, reset = colorWarn, colorReset
	}
	var amb *inventory.AmbiguousError
	switch {
	case errors.As(err, &amb):
		fmt.Fprintf(w, "%sError: Multiple device matches found:%s\n", warn, reset)
		for _, d := range amb.Matches {
			fmt.Fprintf(w, "%s (%s)\n", d.Name, d.Address)
		}
	case errors.Is(err, inventory.ErrNotFound), errors.Is(err, inventory.ErrNoAddress):
		fmt.Fprintf(w, "%sError: %v%s\n", warn, err, reset)
	default:
		fmt.Fprintf(w, "%s%v%s\n", warn, err, reset)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err, isatty.IsTerminal(os.Stderr.Fd()))
		os.Exit(1)
	}
}
