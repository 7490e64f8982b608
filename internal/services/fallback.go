package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Strategy is one tier of a cascading fallback chain.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) error
}

// Attempt records a failed strategy.
type Attempt struct {
	Name string
	Err  error
}

// ExhaustedError is returned when every strategy in a chain failed.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Name, a.Err))
	}
	return fmt.Sprintf("all %d strategies failed (%s)", len(e.Attempts), strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// TryInOrder runs strategies in order and returns the name of the first one
// that succeeds. Later strategies are not run. A cancelled context stops the
// chain immediately.
func TryInOrder(ctx context.Context, label string, strategies ...Strategy) (string, error) {
	if len(strategies) == 0 {
		return "", errors.New("no strategies provided")
	}

	var attempts []Attempt
	for i, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Name: strategy.Name, Err: err})
			return "", &ExhaustedError{Attempts: attempts}
		}

		err := strategy.Run(ctx)
		if err == nil {
			if i > 0 {
				log.Printf("[%s] succeeded with fallback tier %d (%s)", label, i+1, strategy.Name)
			}
			return strategy.Name, nil
		}

		attempts = append(attempts, Attempt{Name: strategy.Name, Err: err})
		if i < len(strategies)-1 {
			log.Printf("[%s] tier %d (%s) failed, falling back: %v", label, i+1, strategy.Name, err)
		}
	}

	return "", &ExhaustedError{Attempts: attempts}
}
