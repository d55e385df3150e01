package forge

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQueueFull is returned by Build when the concurrency ceiling is reached
// and the wait queue is already at capacity. The request is rejected
// immediately so the caller can apply its own backpressure.
var ErrQueueFull = errors.New("forge: build queue full")

// ErrBuildTimeout marks a compile that exceeded the wall-clock limit. It is
// logged distinctly from other compiler failures but reported to callers the
// same way.
var ErrBuildTimeout = errors.New("forge: build timed out")

// ContractError reports template source that no longer satisfies a structural
// invariant, such as the fixed design resolution the ad networks require.
type ContractError struct {
	Game   string
	File   string
	Checks []string // human-readable names of the failed checks
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("forge: template %q violates contract in %s: %s",
		e.Game, e.File, strings.Join(e.Checks, "; "))
}

// MissingAssetsError aggregates every theme asset absent from a workspace so
// all gaps can be fixed in one iteration.
type MissingAssetsError struct {
	Theme   string
	Missing []string
}

func (e *MissingAssetsError) Error() string {
	const sample = 10
	shown := e.Missing
	suffix := ""
	if len(shown) > sample {
		suffix = fmt.Sprintf(" (and %d more)", len(shown)-sample)
		shown = shown[:sample]
	}
	return fmt.Sprintf("forge: theme %q is missing %d asset(s): %s%s",
		e.Theme, len(e.Missing), strings.Join(shown, ", "), suffix)
}

// DependencyError reports a workspace that ended up without its required
// tools or manifests after linking. Installing over the network mid-build is
// deliberately not attempted.
type DependencyError struct {
	Dir    string
	Reason string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("forge: workspace %s unusable: %s", e.Dir, e.Reason)
}

// CompilerError reports a build command that exited non-zero or produced no
// output at the expected path.
type CompilerError struct {
	Command string
	Output  string
	Err     error
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("forge: %q failed: %v", e.Command, e.Err)
}

func (e *CompilerError) Unwrap() error { return e.Err }
