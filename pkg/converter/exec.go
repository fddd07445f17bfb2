package converter

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/mediaconv/pkg/cancel"
	"github.com/psantana5/mediaconv/pkg/converr"
)

// defaultGracePeriod is how long a cancelled encoder gets to exit after
// SIGTERM before it is force-killed
const defaultGracePeriod = 5 * time.Second

// stderrTailLines is how many trailing encoder stderr lines are kept for
// error reporting
const stderrTailLines = 40

// runSpec describes one encoder invocation
type runSpec struct {
	binary     string
	args       []string
	token      *cancel.Token
	grace      time.Duration
	onProgress func(chunk string)
}

// encoderRunner runs one encoder invocation to completion. Swapped for a
// fake in tests.
type encoderRunner interface {
	Run(ctx context.Context, spec runSpec) error
}

// processRunner supervises a real encoder child process
type processRunner struct{}

// Run spawns the encoder and blocks until it exits. Stdout (machine
// progress) and stderr are drained concurrently; failing to read either
// side can stall the pipe and deadlock the encoder. Cancellation sends
// SIGTERM, then SIGKILL after the grace window.
func (processRunner) Run(ctx context.Context, spec runSpec) error {
	cmd := exec.Command(spec.binary, spec.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return spawnError(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return spawnError(err)
	}

	if err := cmd.Start(); err != nil {
		return spawnError(err)
	}

	procDone := make(chan struct{})
	go superviseTermination(cmd, spec, ctx, procDone)

	var wg sync.WaitGroup
	tail := newTailBuffer(stderrTailLines)

	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if spec.onProgress != nil {
				spec.onProgress(scanner.Text())
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 256*1024)
		for scanner.Scan() {
			tail.add(scanner.Text())
		}
	}()

	wg.Wait()
	waitErr := cmd.Wait()
	close(procDone)

	// Cancellation wins races with process-exit errors: a killed encoder
	// reports a non-zero exit, but the user asked for it.
	if spec.token.Cancelled() {
		return converr.NewCancellation()
	}
	if ctx.Err() != nil {
		return converr.NewCancellation()
	}
	if waitErr != nil {
		return exitError(waitErr, tail.text())
	}
	return nil
}

// superviseTermination watches for cancellation while the process runs.
// On cancellation the encoder gets a graceful terminate signal, then a kill
// once the grace window expires.
func superviseTermination(cmd *exec.Cmd, spec runSpec, ctx context.Context, procDone <-chan struct{}) {
	grace := spec.grace
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	select {
	case <-procDone:
		return
	case <-ctx.Done():
	case <-spec.token.Done():
	}

	terminate(cmd)
	select {
	case <-procDone:
	case <-time.After(grace):
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}
}

// terminate asks the encoder to exit gracefully. Platforms that cannot
// deliver SIGTERM fall back to a hard kill.
func terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		cmd.Process.Kill()
	}
}

// spawnError wraps a failure to start the encoder process
func spawnError(err error) error {
	return converr.Wrap(err, converr.CategoryProcessSpawn, converr.SeverityCritical,
		"failed to start encoder process",
		converr.SuggestionsFor(converr.CategoryProcessSpawn)...)
}

// exitError classifies a non-zero encoder exit using the captured stderr
// tail. Disk-full and out-of-memory conditions escalate to resource
// exhaustion; everything else is a plain encoder failure.
func exitError(waitErr error, tail string) error {
	lower := strings.ToLower(tail)
	if strings.Contains(lower, "no space left") || strings.Contains(lower, "disk full") {
		return converr.Wrap(waitErr, converr.CategoryResourceExhaustion, converr.SeverityCritical,
			"encoder ran out of disk space",
			converr.SuggestionsFor(converr.CategoryResourceExhaustion)...)
	}
	if strings.Contains(lower, "cannot allocate memory") || strings.Contains(lower, "out of memory") {
		return converr.Wrap(waitErr, converr.CategoryResourceExhaustion, converr.SeverityCritical,
			"encoder ran out of memory",
			converr.SuggestionsFor(converr.CategoryResourceExhaustion)...)
	}
	msg := "encoder exited with an error"
	if tail != "" {
		msg = fmt.Sprintf("encoder exited with an error: %s", lastLine(tail))
	}
	return converr.Wrap(fmt.Errorf("%w; stderr tail:\n%s", waitErr, tail),
		converr.CategoryEncoderExit, converr.SeverityError, msg,
		converr.SuggestionsFor(converr.CategoryEncoderExit)...)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// tailBuffer keeps the last n lines written to it
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
