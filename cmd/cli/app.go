package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/bootstrap"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

// cliLogger writes to stderr so command output on stdout stays clean.
func cliLogger() zerolog.Logger {
	level := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if _, set := os.LookupEnv("LOG_LEVEL"); !set {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

// open loads configuration and builds the components. The caller closes them.
func open(ctx context.Context) (context.Context, *bootstrap.Components, error) {
	log := cliLogger()
	cfg := config.Load(log)

	c, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return ctx, nil, err
	}
	return logger.WithContext(ctx, log), c, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
