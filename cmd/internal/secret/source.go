package secret

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a secret through a lookup function, falling back to
// prompting the operator when stdin is a terminal. The value is cached after
// the first successful retrieval.
type Source struct {
	label  string
	lookup func() (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource builds a source. label names the secret in prompts and errors.
func NewSource(label string, lookup func() (string, error)) *Source {
	return &Source{label: strings.TrimSpace(label), lookup: lookup}
}

// Get returns the cached secret or resolves it on first use. Whitespace-only
// secrets are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		var lookupErr error
		if s.lookup != nil {
			value, err := s.lookup()
			if err == nil && strings.TrimSpace(value) != "" {
				s.value = value
				return
			}
			lookupErr = err
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			if lookupErr != nil {
				s.err = fmt.Errorf("%s required: %w", s.label, lookupErr)
			} else {
				s.err = fmt.Errorf("%s required and no terminal available", s.label)
			}
			return
		}

		fmt.Fprintf(os.Stderr, "Enter %s: ", s.label)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("read %s: %w", s.label, err)
			return
		}
		value := strings.TrimSpace(string(raw))
		if value == "" {
			s.err = errors.New(s.label + " cannot be empty")
			return
		}
		s.value = value
	})

	return s.value, s.err
}
