package sandbox

// Kind classifies why an execution failed.
type Kind int

const (
	// KindInternal covers filesystem and other unexpected faults; the
	// handler maps it to a 500.
	KindInternal Kind = iota
	// KindToolchainNotFound means the compiler or interpreter binary
	// could not be launched at all.
	KindToolchainNotFound
	// KindCompileFailure carries the compiler diagnostic verbatim.
	KindCompileFailure
	// KindTimeout means the compile or run phase exceeded its bound.
	KindTimeout
	// KindRuntimeFailure means the program exited non-zero.
	KindRuntimeFailure
)

// RunError is a classified execution failure with a message that is
// safe to show to the user.
type RunError struct {
	Kind    Kind
	Message string
}

func (e *RunError) Error() string { return e.Message }

// User-facing messages for environment-level failures. Toolchain
// diagnostics are passed through verbatim instead.
const (
	msgTimeout      = "Execution timeout: Code execution took too long (>5 seconds)"
	msgGPPNotFound  = "C++ compiler (g++) is not installed or not in PATH. Install g++ and make sure it is on your system PATH."
	msgNodeNotFound = "Node.js runtime (node) is not installed or not in PATH. Install Node.js and make sure it is on your system PATH."
)
