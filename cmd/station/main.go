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
	"syscall"

	"github.com/jo-hoe/signtracker/internal/core"
	"github.com/jo-hoe/signtracker/internal/inspection"
	"github.com/jo-hoe/signtracker/internal/scanner"
)

// tokenEnv names the variable the access token can be passed in. It is never
// read from the config file.
const tokenEnv = "SIGNTRACKER_TOKEN"

func main() {
	configPath, err := core.ConfigPath()
	if err != nil {
		slog.Error("failed to resolve config path", "error", err)
		panic(err)
	}
	config, err := core.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdin := bufio.NewReader(os.Stdin)
	token, err := readToken(stdin, os.Stdout)
	if err != nil {
		slog.Error("failed to read access token", "error", err)
		os.Exit(1)
	}

	coreService := core.NewCoreService(config)
	defer func() {
		if err := coreService.Close(); err != nil {
			slog.Error("core service close error", "error", err)
		}
	}()

	workflow := coreService.Workflow()
	s, err := workflow.StartSession(ctx, token)
	if err != nil {
		slog.Error("failed to start session", "error", err)
		fmt.Fprintln(os.Stdout, "Failed to load the sign lists. Check the connection and try again.")
		return
	}
	fmt.Fprintf(os.Stdout, "%d signs loaded, %d log entries. Scan a sign.\n", len(s.Reference), len(s.Log))

	// The scanner types into the same terminal the operator answers on: lines
	// typed while a prompt is open are the answers, anything else is dropped.
	lines := scanner.NewLineScanner(stdin)
	dialog := inspection.NewLineDialog(lines, os.Stdout)
	notifier := inspection.TerminalNotifier{Out: os.Stdout}

	station := inspection.NewStation(workflow, lines, dialog, notifier)
	err = station.Run(ctx, s)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		slog.Info("station stopped", "session_id", s.ID)
	default:
		slog.Error("station stopped", "session_id", s.ID, "error", err)
	}
}

func readToken(in *bufio.Reader, out io.Writer) (string, error) {
	if token := os.Getenv(tokenEnv); token != "" {
		return token, nil
	}
	fmt.Fprint(out, "Access token: ")
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("access token is required")
	}
	return token, nil
}
