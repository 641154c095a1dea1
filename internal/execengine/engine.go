package execengine

import "context"

// Engine abstracts the remote code-execution backend. The relay never
// interprets the output; it only forwards it to room members.
type Engine interface {
	// Run executes source code in the given language and returns the
	// program output. The call may take arbitrarily long and fail; the
	// caller must not hold any room state while waiting.
	Run(ctx context.Context, code, language string) (string, error)
}
