// Command debatesim serves a scripted debate room producer for local
// development: the same wire protocol as the real backend, canned replies.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storyloom/debatestream/internal/config"
	"github.com/storyloom/debatestream/internal/sim"
	"github.com/storyloom/debatestream/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("DEBATE_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdown, err := telemetry.InitTracer("debate-sim", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	handler := otelhttp.NewHandler(sim.New(logger).Router(), "debate-sim")

	addr := fmt.Sprintf(":%d", cfg.Simulator.Port)
	logger.Info("starting debate simulator", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
