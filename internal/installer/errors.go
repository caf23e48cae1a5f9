package installer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ruminaider/editor-kit/internal/cleanup"
	"github.com/ruminaider/editor-kit/internal/prompt"
)

// Exit codes.
const (
	ExitOK                  = 0
	ExitFailure             = 1
	ExitUsage               = 2
	ExitEnvironment         = 3
	ExitTerminalUnavailable = 4
	ExitConflictUnresolved  = 5
)

// UsageError is bad command-line input.
type UsageError struct {
	Msg        string
	Suggestion string
}

func (e *UsageError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (did you mean %q?)", e.Msg, e.Suggestion)
	}
	return e.Msg
}

// EnvironmentError is a missing source directory or document.
type EnvironmentError struct {
	Err error
}

func (e *EnvironmentError) Error() string { return e.Err.Error() }
func (e *EnvironmentError) Unwrap() error { return e.Err }

// TerminalUnavailableError is returned when a step needs an answer, there is
// no terminal to ask on, and no default applies.
type TerminalUnavailableError struct {
	Step string
	Hint string
}

func (e *TerminalUnavailableError) Error() string {
	return fmt.Sprintf("%s needs an interactive terminal; pass %s", e.Step, e.Hint)
}

// ConflictUnresolvedError is returned when a conflict mode cannot be honored.
type ConflictUnresolvedError struct {
	Err error
}

func (e *ConflictUnresolvedError) Error() string {
	return fmt.Sprintf("cannot resolve conflicts: %v", e.Err)
}

func (e *ConflictUnresolvedError) Unwrap() error { return e.Err }

// ExitCode maps an error from Run to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		usage    *UsageError
		env      *EnvironmentError
		noTerm   *TerminalUnavailableError
		conflict *ConflictUnresolvedError
	)
	switch {
	case errors.Is(err, prompt.ErrInterrupted):
		return cleanup.InterruptExitCode
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &env):
		return ExitEnvironment
	case errors.As(err, &noTerm):
		return ExitTerminalUnavailable
	case errors.As(err, &conflict):
		return ExitConflictUnresolved
	default:
		return ExitFailure
	}
}

// Suggest returns the candidate closest to input, or "" when nothing is
// close.
func Suggest(input string, candidates []string) string {
	ranks := fuzzy.RankFindNormalizedFold(input, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(input), strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func unknown(kind, name string, candidates []string) error {
	return &UsageError{
		Msg:        fmt.Sprintf("unknown %s %q (known: %s)", kind, name, strings.Join(candidates, ", ")),
		Suggestion: Suggest(name, candidates),
	}
}
