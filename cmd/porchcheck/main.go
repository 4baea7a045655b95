package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/cli"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/client"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/config"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/observability"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/resolver"
)

var version = "dev"

func main() {
	// Quiet by default so stdout stays machine-readable; LOG_LEVEL raises verbosity.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "error"
	}
	logger, err := observability.NewLoggerAt(level)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(cli.ExitError)
	}

	cfg, err := config.Defaults()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(cli.ExitError)
	}
	weatherClient, err := client.NewNWSClient(cfg.WeatherAPIURL, cfg.WeatherUserAgent, cfg.WeatherAPITimeout)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(cli.ExitError)
	}

	deps := cli.Dependencies{
		Resolver: resolver.New(weatherClient, resolver.WithLogger(logger)),
		Version:  version,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], deps, os.Stdout, os.Stderr)
	stop()
	_ = logger.Sync()
	os.Exit(code)
}
