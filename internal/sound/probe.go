package sound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
)

var ErrProbeClosed = errors.New("sound probe closed")

// Config for a PCM level probe
type Config struct {
	Threshold  float64
	SampleRate int
	Window     time.Duration
}

// DefaultConfig returns the microphone defaults: RMS above 0.02 over one second at 44.1 kHz
func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThreshold,
		SampleRate: DefaultSampleRate,
		Window:     DefaultWindow,
	}
}

// StreamProbe reads one window of PCM per ProbeSound from a continuous stream
type StreamProbe struct {
	mu      sync.Mutex
	r       io.Reader
	config  Config
	samples int
}

func NewStreamProbe(r io.Reader, config Config) *StreamProbe {
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	return &StreamProbe{
		r:       r,
		config:  config,
		samples: WindowSamples(config.Window, config.SampleRate),
	}
}

func (p *StreamProbe) ProbeSound(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	samples, err := ReadWindow(p.r, p.samples)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, fmt.Errorf("%w: %v", ErrProbeClosed, err)
		}
		return false, err
	}

	return RMS(samples) > p.config.Threshold, nil
}

// CommandProbe captures PCM from an external recorder process, e.g.
// "arecord -q -t raw -f S16_LE -c 1". The sample rate is appended as -r.
type CommandProbe struct {
	*StreamProbe
	cmd    *exec.Cmd
	logger *slog.Logger
	once   sync.Once
}

// StartCommandProbe spawns the recorder. The process is killed when ctx is
// cancelled and reaped by Close.
func StartCommandProbe(ctx context.Context, command string, config Config, logger *slog.Logger) (*CommandProbe, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("empty sound command")
	}
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultSampleRate
	}
	args := append(fields[1:], "-r", strconv.Itoa(config.SampleRate))

	cmd := exec.CommandContext(ctx, fields[0], args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start sound command: %w", err)
	}

	p := &CommandProbe{
		StreamProbe: NewStreamProbe(stdout, config),
		cmd:         cmd,
		logger:      logger.With("component", "sound_probe"),
	}

	p.logger.Info("sound probe started", "command", fields[0], "sample_rate", config.SampleRate)
	return p, nil
}

// Close kills the recorder and waits for it. Wait closes the stdout pipe, so
// whoever reads the probe must have stopped before Close is called.
func (p *CommandProbe) Close() error {
	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		// evita processo zumbi
		if err := p.cmd.Wait(); err != nil {
			p.logger.Debug("sound command exited", "error", err)
		}
	})
	return nil
}

var (
	_ detector.SoundProbe = (*StreamProbe)(nil)
	_ detector.SoundProbe = (*CommandProbe)(nil)
)
