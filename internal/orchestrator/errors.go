package orchestrator

import "fmt"

// AuthFormMissingError means the login page did not have the expected form fields.
type AuthFormMissingError struct {
	URL      string
	Selector string
	Err      error
}

func (e *AuthFormMissingError) Error() string {
	return fmt.Sprintf("login form field %q missing on %s: %v", e.Selector, e.URL, e.Err)
}

func (e *AuthFormMissingError) Unwrap() error { return e.Err }

// StepError names the state and step in which a browser interaction failed.
type StepError struct {
	State      State
	Identifier string // empty outside the identifier loop
	Step       string
	Err        error
}

func (e *StepError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("%s [%s]: %s: %v", e.State, e.Identifier, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.State, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
