package alert

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrNoAlarmCommand = errors.New("alarm command is empty")

// Player plays the alarm sound once. Calls may overlap.
type Player interface {
	Play(ctx context.Context) error
}

// CommandPlayer plays a sound file through an external command, e.g. "aplay -q"
type CommandPlayer struct {
	name  string
	args  []string
	sound string
}

func NewCommandPlayer(command, sound string) (*CommandPlayer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoAlarmCommand
	}
	return &CommandPlayer{name: fields[0], args: fields[1:], sound: sound}, nil
}

func (p *CommandPlayer) Play(ctx context.Context) error {
	args := append(append([]string{}, p.args...), p.sound)
	cmd := exec.CommandContext(ctx, p.name, args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("play alarm: %w: %s", err, msg)
		}
		return fmt.Errorf("play alarm: %w", err)
	}
	return nil
}

// NopPlayer is used when no audio device is available
type NopPlayer struct{}

func (NopPlayer) Play(context.Context) error { return nil }

// PlayerFunc adapts a function to Player
type PlayerFunc func(ctx context.Context) error

func (f PlayerFunc) Play(ctx context.Context) error { return f(ctx) }
