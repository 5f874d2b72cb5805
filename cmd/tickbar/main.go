package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickbar/internal/app"
)

func main() {
	var (
		cfgPath    string
		hours      int
		minutes    int
		seconds    int
		message    string
		start      bool
		testNotify bool
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config (json or yaml)")
	flag.IntVar(&hours, "hours", -1, "countdown hours (overrides persisted settings)")
	flag.IntVar(&minutes, "minutes", -1, "countdown minutes")
	flag.IntVar(&seconds, "seconds", -1, "countdown seconds")
	flag.StringVar(&message, "message", "", "completion message (spoken when the countdown finishes)")
	flag.BoolVar(&start, "start", false, "start the countdown immediately")
	flag.BoolVar(&testNotify, "test-notify", false, "post a test notification and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	if testNotify {
		err := a.Notifier().Test(ctx)
		if err != nil {
			fmt.Println("test notification failed:", err)
		}
		// Give the async pipeline a moment to deliver before shutdown.
		time.Sleep(2 * time.Second)
		stop(a, app.StopAppStop)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	// CLI overrides replace persisted timer settings for this run.
	if hours >= 0 || minutes >= 0 || seconds >= 0 || message != "" {
		cur := a.Countdown().Config()
		if hours >= 0 {
			cur.Hours = hours
		}
		if minutes >= 0 {
			cur.Minutes = minutes
		}
		if seconds >= 0 {
			cur.Seconds = seconds
		}
		if message != "" {
			cur.Message = message
		}
		a.Countdown().Configure(cur.Hours, cur.Minutes, cur.Seconds, cur.Message)
	}
	if start {
		a.Countdown().Start()
	}

	reason := app.StopSIGTERM
	select {
	case <-ctx.Done():
		reason = app.StopSIGINT
	case <-a.Done():
		if err := a.Err(); err != nil {
			fmt.Println("fatal:", err)
			reason = app.StopFatalError
		}
	}
	stop(a, reason)
}

func stop(a *app.App, reason app.StopReason) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx, reason)
}
