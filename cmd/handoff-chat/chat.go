package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/ashureev/handoff-chat/internal/provider"
	"github.com/ashureev/handoff-chat/internal/session"
	"github.com/lmittmann/tint"
)

// Run starts the interactive loop. It is called by kong.
func (c *CLI) Run() error {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:   parseLogLevel(c.LogLevel),
		NoColor: c.NoColor,
	}))
	slog.SetDefault(logger)

	priming, err := session.ParsePrimingMode(c.Priming)
	if err != nil {
		return err
	}

	var p provider.Provider
	if c.Provider == "scripted" {
		p = provider.NewScripted()
	} else {
		p = provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  c.APIKey,
			BaseURL: c.BaseURL,
			Timeout: c.Timeout,
		}, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := newRenderer(os.Stdout, c.NoColor)
	return runLoop(ctx, session.NewManager(p, session.Options{Priming: priming, Logger: logger}), c.Model, os.Stdin, r)
}

// runLoop reads one user turn per line until EOF or /quit. /reset starts a
// fresh conversation.
func runLoop(ctx context.Context, mgr *session.Manager, model string, in io.Reader, r *renderer) error {
	conv := session.Initialize()
	r.Transcript(session.Visible(conv))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		r.Prompt()
		if !scanner.Scan() {
			r.Newline()
			return scanner.Err()
		}
		line := strings.TrimRight(scanner.Text(), "\r")

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/reset":
			conv = session.Reset()
			r.Info("Conversation reset.")
			r.Transcript(session.Visible(conv))
			continue
		}

		res, err := mgr.Turn(ctx, conv, line, model)
		if err != nil {
			var missing *session.MissingCredentialError
			switch {
			case errors.Is(err, session.ErrEmptyInput):
				continue
			case errors.As(err, &missing):
				r.Warning(session.MissingCredentialNotice)
			case ctx.Err() != nil:
				return nil
			default:
				r.Error(fmt.Sprintf("An error occurred: %v", err))
			}
			continue
		}
		conv = res.Conversation

		r.Message(res.Reply)
		if res.Escalated {
			r.Warning(session.EscalationNotice)
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
