package notify

import (
	"context"
	"os/exec"
	"strings"
	"time"

	logx "tickbar/pkg/logx"
)

// Speaker voices the countdown completion message.
type Speaker interface {
	// Say speaks text. Implementations must be safe to call from any
	// goroutine and must not block the caller's state machine.
	Say(ctx context.Context, text string) error
}

// ExecSpeaker shells out to a speech synthesizer ("say" on macOS).
type ExecSpeaker struct {
	Command string
	Voice   string
	Log     logx.Logger
}

func NewExecSpeaker(command, voice string, log logx.Logger) *ExecSpeaker {
	if strings.TrimSpace(command) == "" {
		command = "say"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ExecSpeaker{Command: command, Voice: voice, Log: log}
}

// Say launches the synthesizer and returns immediately. Failures are logged;
// speech is strictly fire-and-forget.
func (s *ExecSpeaker) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	args := make([]string, 0, 3)
	if strings.TrimSpace(s.Voice) != "" {
		args = append(args, "-v", s.Voice)
	}
	args = append(args, text)

	// Bound the synthesizer so a wedged process can't leak.
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	cmd := exec.CommandContext(cctx, s.Command, args...)
	if err := cmd.Start(); err != nil {
		cancel()
		s.Log.Warn("speech start failed", logx.String("command", s.Command), logx.Err(err))
		return err
	}
	go func() {
		defer cancel()
		if err := cmd.Wait(); err != nil {
			s.Log.Debug("speech exited with error", logx.Err(err))
		}
	}()
	return nil
}

// NopSpeaker discards announcements (speech disabled in config).
type NopSpeaker struct{}

func (NopSpeaker) Say(ctx context.Context, text string) error { return nil }
