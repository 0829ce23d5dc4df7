// Command example loads a client config and places a single IOC market
// order, demonstrating the library's construction and call pattern. It is
// not the module's deliverable — hlgo is a library — but a minimal,
// runnable entrypoint the way the teacher's cmd/bot shows off its engine.
package main

import (
	"context"
	"os"

	"log/slog"

	"hlgo/internal/config"
	"hlgo/internal/exchange"
	"hlgo/pkg/hltypes"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("HL_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	client, err := exchange.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	isBuy := true
	intent := hltypes.OrderIntent{
		Instrument: hltypes.Perp,
		Symbol:     "ETH",
		Size:       "0.01",
		IsBuy:      &isBuy,
		OrderType:  &hltypes.OrderVariant{Limit: &hltypes.LimitOrder{Tif: hltypes.TifIOC}},
	}

	resp, err := client.Order(ctx, intent, nil)
	if err != nil {
		logger.Error("order failed", "error", err)
		os.Exit(1)
	}
	logger.Info("order submitted", "response", string(resp))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
