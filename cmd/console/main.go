package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"

	"partscope/internal/app"
	"partscope/internal/config"
	"partscope/internal/console"
	"partscope/internal/inference"
	"partscope/internal/logger"
	"partscope/internal/service/session"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg := config.Load()

	log, err := logger.New(cfg.LogDirectory)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := inference.NewClient(app.APIBaseURL(cfg), nil, log)
	gate := session.NewGate()
	gate.Probe(ctx, client)

	sess := session.New("console", session.Dependencies{
		Gate:      gate,
		Predictor: client,
		Logger:    log,
	})

	r, err := app.NewRunner(cfg, log)
	if err != nil {
		fmt.Printf("On-device runner unavailable: %v\n", err)
	}
	defer app.CloseRunner(r, log)

	c := console.New(sess, r, os.Stdout)
	fmt.Printf("API %s: %s\n", client.BaseURL(), gate.Readiness().State)
	c.Help()

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		err = c.Execute(ctx, strings.TrimSpace(line))
		if errors.Is(err, console.ErrQuit) {
			break
		}
		if err != nil {
			fmt.Println(err)
		}
	}
	return nil
}
