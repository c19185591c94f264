package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/socks5d/internal/dialer"
	"github.com/die-net/socks5d/internal/proxy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen   = pflag.String("listen", "127.0.0.1:1080", "SOCKS5 listen address")
		upstream = pflag.String("upstream", defaultUpstream(), "Upstream forwarding target URL: direct:// | socks5://[user:pass@]host:port")

		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for method negotiation and the connect request")
		idleTimeout        = pflag.Duration("idle-timeout", 0, "Close relays with no traffic in either direction for this long (0 disables)")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		reusePort          = pflag.Bool("reuse-port", false, "Set SO_REUSEPORT on the listening socket")
		logLevel           = pflag.String("log-level", "info", "Log level: trace|debug|info|warn|error")
		verbose            = pflag.Bool("verbose", false, "Enable per-connection error logging")
	)

	if !proxy.ReusePortSupported {
		_ = pflag.CommandLine.MarkHidden("reuse-port")
	}

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	level, err := zerolog.ParseLevel(strings.ToLower(*logLevel))
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	cfg := proxy.Config{
		NegotiationTimeout: *negotiationTimeout,
		DialTimeout:        *dialTimeout,
		IdleTimeout:        *idleTimeout,
		KeepAlive:          ka,
		Logger:             logger,
		Verbose:            *verbose,
	}

	cfg.Dialer, err = dialer.New(dialer.Config{DialTimeout: *dialTimeout, KeepAlive: ka}, *upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := proxy.ListenTCP(ctx, "tcp", *listen, proxy.ListenConfig{KeepAlive: ka, ReusePort: *reusePort})
	if err != nil {
		return err
	}
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	srv := proxy.NewServer(ctx, cfg)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("socks5 serve: %w", err)
		}
		return nil
	})

	logger.Info().Str("addr", ln.Addr().String()).Str("upstream", *upstream).Msg("socks5 proxy listening")

	err = g.Wait()
	logger.Info().Msg("shutting down")
	return err
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	switch s = strings.TrimSpace(strings.ToLower(s)); s {
	case "":
		return net.KeepAliveConfig{}, errors.New("empty")
	case "on":
		return net.KeepAliveConfig{Enable: true}, nil
	case "off":
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}

	var vals [3]int
	for i, name := range []string{"keepidle", "keepintvl", "keepcnt"} {
		n, err := parsePositiveInt(parts[i])
		if err != nil {
			return net.KeepAliveConfig{}, fmt.Errorf("%s: %w", name, err)
		}
		vals[i] = n
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     time.Duration(vals[0]) * time.Second,
		Interval: time.Duration(vals[1]) * time.Second,
		Count:    vals[2],
	}, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func defaultUpstream() string {
	for _, k := range []string{"ALL_PROXY", "all_proxy"} {
		if p := os.Getenv(k); p != "" {
			return p
		}
	}
	return "direct://"
}
