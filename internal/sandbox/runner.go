package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rahul2762/codesync-backend/pkg/logger"
)

// Supported language tags.
const (
	LanguageCPP        = "cpp"
	LanguageJavaScript = "javascript"
)

// Supported reports whether the runner knows the language tag.
func Supported(language string) bool {
	return language == LanguageCPP || language == LanguageJavaScript
}

// Result is the captured output of a successful execution. A zero-exit
// run that wrote only to stderr still counts as a success; diagnostics
// on stderr are commonplace for programs that exit cleanly.
type Result struct {
	Stdout string
	Stderr string
}

// Runner compiles and runs untrusted snippets as argument-vector
// subprocesses with bounded time and output. Calls are fully isolated
// from each other through uniquely named scratch artifacts, so a
// single Runner is safe for concurrent use.
type Runner struct {
	Dir            string
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	MaxOutput      int64

	// Toolchain binaries, overridable for tests.
	CompilerPath    string
	InterpreterPath string
}

// NewRunner creates a runner rooted at dir (os.TempDir()/codesync when
// empty) with the default 10s compile / 5s run / 1MiB output bounds.
func NewRunner(dir string) (*Runner, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "codesync")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Runner{
		Dir:             dir,
		CompileTimeout:  10 * time.Second,
		RunTimeout:      5 * time.Second,
		MaxOutput:       1 << 20,
		CompilerPath:    "g++",
		InterpreterPath: "node",
	}, nil
}

// Run executes code in the given language and returns its captured
// output, or a *RunError classifying the failure. Scratch artifacts
// are removed on every exit path.
func (r *Runner) Run(ctx context.Context, code, language string) (Result, error) {
	switch language {
	case LanguageCPP:
		return r.runCPP(ctx, code)
	case LanguageJavaScript:
		return r.runJavaScript(ctx, code)
	default:
		return Result{}, &RunError{Kind: KindInternal, Message: "Unsupported language: " + language}
	}
}

// scratchName yields a collision-free basename for one execution.
func scratchName() string {
	return fmt.Sprintf("code_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// artifacts tracks every file created for one execution so a single
// deferred release covers all exit paths.
type artifacts struct {
	paths []string
}

func (a *artifacts) add(path string) { a.paths = append(a.paths, path) }

func (a *artifacts) release() {
	for _, p := range a.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn().Str("path", p).Err(err).Msg("Failed to remove scratch artifact")
		}
	}
}

func (r *Runner) runCPP(ctx context.Context, code string) (Result, error) {
	scratch := &artifacts{}
	defer scratch.release()

	name := scratchName()
	src := filepath.Join(r.Dir, name+".cpp")
	bin := filepath.Join(r.Dir, name)
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}

	scratch.add(src)
	if err := os.WriteFile(src, []byte(code), 0o644); err != nil {
		return Result{}, &RunError{Kind: KindInternal, Message: "Server error: " + err.Error()}
	}

	// Compile phase. The binary path is registered before compiling so
	// it is cleaned up even when the compiler half-produced it.
	scratch.add(bin)
	compileOut, err := r.exec(ctx, r.CompileTimeout, r.CompilerPath, "-o", bin, src)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return Result{}, &RunError{Kind: KindTimeout, Message: msgTimeout}
		case errors.Is(err, exec.ErrNotFound):
			return Result{}, &RunError{Kind: KindToolchainNotFound, Message: msgGPPNotFound}
		default:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				diag := compileOut.stderr
				if diag == "" {
					diag = err.Error()
				}
				return Result{}, &RunError{Kind: KindCompileFailure, Message: diag}
			}
			return Result{}, &RunError{Kind: KindInternal, Message: "Server error: " + err.Error()}
		}
	}
	// g++ can warn on stderr and still exit zero; a diagnostic with a
	// zero exit is treated as a compile failure to match the relayed
	// editor experience, where warnings are worth surfacing before run.
	if strings.TrimSpace(compileOut.stderr) != "" {
		return Result{}, &RunError{Kind: KindCompileFailure, Message: compileOut.stderr}
	}

	// Run phase, separate and shorter.
	runOut, err := r.exec(ctx, r.RunTimeout, bin)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return Result{}, &RunError{Kind: KindTimeout, Message: msgTimeout}
		default:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				msg := runOut.stderr
				if msg == "" {
					msg = "Execution failed"
				}
				return Result{}, &RunError{Kind: KindRuntimeFailure, Message: msg}
			}
			return Result{}, &RunError{Kind: KindInternal, Message: "Server error: " + err.Error()}
		}
	}

	return Result{Stdout: runOut.stdout, Stderr: runOut.stderr}, nil
}

func (r *Runner) runJavaScript(ctx context.Context, code string) (Result, error) {
	scratch := &artifacts{}
	defer scratch.release()

	src := filepath.Join(r.Dir, scratchName()+".js")
	scratch.add(src)
	if err := os.WriteFile(src, []byte(code), 0o644); err != nil {
		return Result{}, &RunError{Kind: KindInternal, Message: "Server error: " + err.Error()}
	}

	out, err := r.exec(ctx, r.RunTimeout, r.InterpreterPath, src)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return Result{}, &RunError{Kind: KindTimeout, Message: msgTimeout}
		case errors.Is(err, exec.ErrNotFound):
			return Result{}, &RunError{Kind: KindToolchainNotFound, Message: msgNodeNotFound}
		default:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				msg := out.stderr
				if msg == "" {
					msg = "Execution failed"
				}
				return Result{}, &RunError{Kind: KindRuntimeFailure, Message: msg}
			}
			return Result{}, &RunError{Kind: KindInternal, Message: "Server error: " + err.Error()}
		}
	}

	return Result{Stdout: out.stdout, Stderr: out.stderr}, nil
}

type procOutput struct {
	stdout string
	stderr string
}

// exec runs one subprocess with a hard deadline and capped output
// capture. The argument vector goes straight to the OS; nothing is
// ever interpolated through a shell, so source content and filenames
// cannot inject commands.
func (r *Runner) exec(ctx context.Context, timeout time.Duration, name string, args ...string) (procOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &cappedWriter{w: &stdout, remaining: r.MaxOutput}
	cmd.Stderr = &cappedWriter{w: &stderr, remaining: r.MaxOutput}

	// If the killed process leaked pipe-holding children, give Wait a
	// grace period instead of hanging past the deadline.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	out := procOutput{stdout: stdout.String(), stderr: stderr.String()}

	if ctx.Err() == context.DeadlineExceeded {
		logger.Warn().Str("cmd", name).Dur("elapsed", time.Since(start)).Msg("Subprocess killed on timeout")
		return out, context.DeadlineExceeded
	}
	return out, err
}

// cappedWriter forwards up to remaining bytes and silently discards
// the rest, so a runaway program cannot balloon server memory while
// the pipe still drains.
type cappedWriter struct {
	w         io.Writer
	remaining int64
}

func (c *cappedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if c.remaining <= 0 {
		return n, nil
	}
	if int64(n) > c.remaining {
		if _, err := c.w.Write(p[:c.remaining]); err != nil {
			return 0, err
		}
		c.remaining = 0
		return n, nil
	}
	c.remaining -= int64(n)
	return c.w.Write(p)
}
