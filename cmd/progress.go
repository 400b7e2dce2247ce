package cmd

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// withSpinner runs fn while a spinner shows msg on stderr. Nothing is
// drawn when stderr is not a terminal or verbose logging is on.
func withSpinner(msg string, fn func() error) error {
	if verbose || !term.IsTerminal(int(os.Stderr.Fd())) {
		return fn()
	}

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr),
		spinner.WithHiddenCursor(true))
	s.Suffix = " " + msg
	s.Start()
	defer s.Stop()

	return fn()
}
