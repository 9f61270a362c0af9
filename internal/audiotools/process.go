// process.go wraps a spawned ffmpeg/ffprobe child process, capturing its
// stderr for diagnostics and exposing a handle the job runner can register
// in its process table before blocking on Wait (spec.md §4.B/§4.F).
package audiotools

import (
	"bufio"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/jrnl/voicejournal/internal/errors"
)

// maxCapturedStderrLines bounds how much diagnostic output a Handle keeps
// in memory; only the tail matters for failure reporting.
const maxCapturedStderrLines = 40

// Handle wraps a running external tool invocation (ffmpeg or ffprobe),
// following the exec.CommandContext + stderr-scanner-goroutine shape of
// the teacher's audiocore/utils/ffmpeg process, minus the continuous
// stream framing that package needs for RTSP — these invocations are
// one-shot, file-to-file.
type Handle struct {
	cmd  *exec.Cmd
	tool string

	mu       sync.Mutex
	stderr   []string
	waitOnce sync.Once
	waitErr  error
}

// Cmd exposes the underlying command so the job runner can key its process
// table by entry id and signal it on cancellation.
func (h *Handle) Cmd() *exec.Cmd { return h.cmd }

// Kill terminates the child process; safe to call on an already-exited one.
func (h *Handle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

// Wait blocks for the process to exit, returning a categorized error with
// the last captured diagnostic lines on nonzero exit.
func (h *Handle) Wait() error {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		if err == nil {
			return
		}
		h.mu.Lock()
		diag := strings.Join(h.stderr, "\n")
		h.mu.Unlock()
		h.waitErr = errors.Newf("%s: %w: %s", h.tool, err, diag).
			Component("audiotools").
			Category(errors.CategoryAudio).
			Context("tool", h.tool).
			Context("stderr", diag).
			Build()
	})
	return h.waitErr
}

// NewHandle starts cmd, attaches a stderr-capturing scanner goroutine, and
// returns the handle immediately without waiting. Exported so other
// packages that spawn one-shot external tools (internal/transcriber's
// whisper invocations) share the same capture-and-wait shape instead of
// reimplementing it.
func NewHandle(tool string, cmd *exec.Cmd) (*Handle, error) {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.New(err).
			Component("audiotools").
			Category(errors.CategorySystem).
			Context("operation", "create-stderr-pipe").
			Context("tool", tool).
			Build()
	}

	h := &Handle{cmd: cmd, tool: tool}

	if err := cmd.Start(); err != nil {
		return nil, errors.New(err).
			Component("audiotools").
			Category(errors.CategorySystem).
			Context("operation", "start-"+tool).
			Build()
	}

	go h.captureStderr(stderr)

	return h, nil
}

func (h *Handle) captureStderr(stderr io.ReadCloser) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		h.mu.Lock()
		h.stderr = append(h.stderr, line)
		if len(h.stderr) > maxCapturedStderrLines {
			h.stderr = h.stderr[len(h.stderr)-maxCapturedStderrLines:]
		}
		h.mu.Unlock()
	}
}
