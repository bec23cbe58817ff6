package tokenizer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/starford/sowilo/internal/apperr"
)

// Config describes the external worker processes.
type Config struct {
	// Command is the worker argv. The worker reads one line of text on stdin
	// and answers with one line of JSON: {"data": ["token", ...]}.
	Command []string
	// Env is appended to the current environment of every worker.
	Env []string
	// Workers is the fixed number of processes kept alive.
	Workers int
}

type response struct {
	Data []string `json:"data"`
}

type worker struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	w   *bufio.Writer
	out *bufio.Reader

	killOnce sync.Once
}

// roundTrip writes one line and reads exactly one line of JSON back.
func (w *worker) roundTrip(text string) ([]string, error) {
	line := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	if _, err := w.w.WriteString(line + "\n"); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	reply, err := w.out.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var resp response
	if err := json.Unmarshal([]byte(reply), &resp); err != nil {
		return nil, fmt.Errorf("decode %q: %w", strings.TrimSpace(reply), err)
	}
	return resp.Data, nil
}

// kill stops the process. Later calls wait for the first to finish.
func (w *worker) kill() {
	w.killOnce.Do(func() {
		_ = w.in.Close()
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
		_ = w.cmd.Wait()
	})
}

// Pool is a fixed-size set of long-lived tokenizer processes. Callers check
// out an idle worker, do one request/response exchange and return it.
//
// A worker that fails is killed and replaced. When a replacement cannot be
// started the pool shrinks; once no worker is left every caller gets
// apperr.ErrPoolExhausted instead of waiting forever.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	idle      chan *worker
	exhausted chan struct{}
	done      chan struct{}

	mu     sync.Mutex
	live   int
	closed bool
}

// NewPool starts cfg.Workers processes. If any fails to start, the ones
// already running are killed and the error is returned.
func NewPool(cfg Config, logger *slog.Logger) (*Pool, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("tokenizer: command is required")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("tokenizer: workers must be positive, got %d", cfg.Workers)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		cfg:       cfg,
		logger:    logger,
		idle:      make(chan *worker, cfg.Workers),
		exhausted: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		w, err := p.spawn()
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.live++
		p.idle <- w
	}
	logger.Info("tokenizer: pool started",
		slog.Int("workers", cfg.Workers),
		slog.String("command", strings.Join(cfg.Command, " ")))
	return p, nil
}

func (p *Pool) spawn() (*worker, error) {
	cmd := exec.Command(p.cfg.Command[0], p.cfg.Command[1:]...) //nolint:gosec // command comes from config
	cmd.Env = append(os.Environ(), p.cfg.Env...)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("tokenizer: stdin pipe: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("tokenizer: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("tokenizer: start %s: %w", p.cfg.Command[0], err)
	}
	return &worker{
		cmd: cmd,
		in:  in,
		w:   bufio.NewWriter(in),
		out: bufio.NewReader(out),
	}, nil
}

// Tokenize implements Tokenizer.
func (p *Pool) Tokenize(ctx context.Context, text string) ([]string, error) {
	w, err := p.checkout(ctx)
	if err != nil {
		return nil, err
	}
	// A cancelled caller kills its worker so a hung exchange cannot
	// outlive the build.
	stop := context.AfterFunc(ctx, w.kill)
	tokens, err := w.roundTrip(text)
	if !stop() {
		p.discard(w, ctx.Err())
		return nil, fmt.Errorf("tokenizer: %w", ctx.Err())
	}
	if err != nil {
		p.discard(w, err)
		return nil, fmt.Errorf("tokenizer: %w: %w", apperr.ErrTool, err)
	}
	p.checkin(w)
	return tokens, nil
}

func (p *Pool) checkout(ctx context.Context) (*worker, error) {
	select {
	case <-p.done:
		return nil, fmt.Errorf("tokenizer: %w", apperr.ErrPoolClosed)
	default:
	}
	select {
	case w := <-p.idle:
		return w, nil
	case <-p.exhausted:
		return nil, fmt.Errorf("tokenizer: %w", apperr.ErrPoolExhausted)
	case <-p.done:
		return nil, fmt.Errorf("tokenizer: %w", apperr.ErrPoolClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) checkin(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		w.kill()
		p.live--
		return
	}
	p.idle <- w
}

// discard kills a failed worker and tries to put a fresh one in its place.
func (p *Pool) discard(w *worker, cause error) {
	w.kill()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.live--
		return
	}
	fresh, err := p.spawn()
	if err == nil {
		p.logger.Warn("tokenizer: worker replaced", slog.String("cause", cause.Error()))
		p.idle <- fresh
		return
	}
	p.live--
	p.logger.Error("tokenizer: worker lost",
		slog.String("cause", cause.Error()),
		slog.String("error", err.Error()),
		slog.Int("live", p.live))
	if p.live == 0 {
		close(p.exhausted)
	}
}

// Live returns the number of workers owned by the pool.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Close kills every idle worker. Workers checked out at the time are killed
// when they are returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	for {
		select {
		case w := <-p.idle:
			w.kill()
			p.live--
		default:
			return nil
		}
	}
}

var _ Tokenizer = (*Pool)(nil)
