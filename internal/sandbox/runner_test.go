package sandbox

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(t.TempDir())
	require.NoError(t, err)
	return r
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available in test environment", name)
	}
}

// assertNoArtifacts checks that a runner left nothing behind on disk.
func assertNoArtifacts(t *testing.T, r *Runner) {
	t.Helper()
	entries, err := os.ReadDir(r.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch artifacts left behind")
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("cpp"))
	assert.True(t, Supported("javascript"))
	assert.False(t, Supported("python"))
	assert.False(t, Supported(""))
}

func TestJavaScriptSuccess(t *testing.T) {
	requireTool(t, "node")
	r := newTestRunner(t)

	result, err := r.Run(context.Background(), `console.log("hello from js")`, LanguageJavaScript)
	require.NoError(t, err)
	assert.Equal(t, "hello from js\n", result.Stdout)
	assert.Equal(t, "", result.Stderr)
	assertNoArtifacts(t, r)
}

func TestJavaScriptStderrWithZeroExit(t *testing.T) {
	requireTool(t, "node")
	r := newTestRunner(t)

	// Diagnostics on stderr with a clean exit still count as success.
	result, err := r.Run(context.Background(), `console.error("just a warning")`, LanguageJavaScript)
	require.NoError(t, err)
	assert.Equal(t, "", result.Stdout)
	assert.Equal(t, "just a warning\n", result.Stderr)
	assertNoArtifacts(t, r)
}

func TestJavaScriptRuntimeFailure(t *testing.T) {
	requireTool(t, "node")
	r := newTestRunner(t)

	_, err := r.Run(context.Background(), `throw new Error("boom")`, LanguageJavaScript)
	require.Error(t, err)

	runErr, ok := err.(*RunError)
	require.True(t, ok)
	assert.Equal(t, KindRuntimeFailure, runErr.Kind)
	assert.Contains(t, runErr.Message, "boom")
	assertNoArtifacts(t, r)
}

func TestJavaScriptTimeout(t *testing.T) {
	requireTool(t, "node")
	r := newTestRunner(t)
	r.RunTimeout = 500 * time.Millisecond

	start := time.Now()
	_, err := r.Run(context.Background(), `while (true) {}`, LanguageJavaScript)
	elapsed := time.Since(start)

	require.Error(t, err)
	runErr, ok := err.(*RunError)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, runErr.Kind)
	assert.Equal(t, msgTimeout, runErr.Message)
	assert.Less(t, elapsed, 5*time.Second, "process was not killed at the deadline")
	assertNoArtifacts(t, r)
}

func TestCPPSuccess(t *testing.T) {
	requireTool(t, "g++")
	r := newTestRunner(t)

	code := `#include <iostream>
int main() { std::cout << "hello from cpp" << std::endl; return 0; }`
	result, err := r.Run(context.Background(), code, LanguageCPP)
	require.NoError(t, err)
	assert.Equal(t, "hello from cpp\n", result.Stdout)
	assertNoArtifacts(t, r)
}

func TestCPPCompileFailure(t *testing.T) {
	requireTool(t, "g++")
	r := newTestRunner(t)

	_, err := r.Run(context.Background(), `int main() { this will not compile`, LanguageCPP)
	require.Error(t, err)

	runErr, ok := err.(*RunError)
	require.True(t, ok)
	assert.Equal(t, KindCompileFailure, runErr.Kind)
	assert.NotEmpty(t, runErr.Message, "compiler diagnostic should be passed through")
	assertNoArtifacts(t, r)
}

func TestCPPInfiniteLoopTimeout(t *testing.T) {
	requireTool(t, "g++")
	r := newTestRunner(t)
	r.RunTimeout = 500 * time.Millisecond

	code := `int main() { while (true) {} }`
	_, err := r.Run(context.Background(), code, LanguageCPP)
	require.Error(t, err)

	runErr, ok := err.(*RunError)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, runErr.Kind)
	assertNoArtifacts(t, r)
}

func TestToolchainNotFound(t *testing.T) {
	r := newTestRunner(t)
	r.CompilerPath = "definitely-not-a-compiler-xyz"
	r.InterpreterPath = "definitely-not-node-xyz"

	_, err := r.Run(context.Background(), `int main() {}`, LanguageCPP)
	require.Error(t, err)
	runErr, ok := err.(*RunError)
	require.True(t, ok)
	assert.Equal(t, KindToolchainNotFound, runErr.Kind)

	_, err = r.Run(context.Background(), `console.log(1)`, LanguageJavaScript)
	require.Error(t, err)
	runErr, ok = err.(*RunError)
	require.True(t, ok)
	assert.Equal(t, KindToolchainNotFound, runErr.Kind)

	assertNoArtifacts(t, r)
}

func TestUnsupportedLanguage(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.Run(context.Background(), "print(1)", "python")
	require.Error(t, err)
	runErr, ok := err.(*RunError)
	require.True(t, ok)
	assert.Equal(t, KindInternal, runErr.Kind)
	assert.Contains(t, runErr.Message, "python")
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	requireTool(t, "node")
	r := newTestRunner(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := r.Run(context.Background(), `console.log("ok")`, LanguageJavaScript)
			assert.NoError(t, err)
			assert.Equal(t, "ok\n", result.Stdout)
		}()
	}
	wg.Wait()
	assertNoArtifacts(t, r)
}

func TestCappedWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &cappedWriter{w: &buf, remaining: 5}

	n, err := w.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	// Overflows the cap; the write still reports full length so the
	// pipe keeps draining.
	n, err = w.Write([]byte("defgh"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", buf.String())

	n, err = w.Write([]byte("more"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcde", buf.String())
}
