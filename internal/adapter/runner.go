package adapter

import (
	"context"
	"os/exec"
)

// Runner defines an interface for running external commands to enable mocking
//
//go:generate mockgen -source=runner.go -destination=../mocks/runner.go -package=mocks -mock_names=Runner=MockRunner
type Runner interface {
	// Run executes the named command and returns its combined output
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath searches for an executable in the directories named by PATH
	LookPath(name string) (string, error)
}

// RealRunner implements Runner using the standard os/exec package
type RealRunner struct{}

// NewRunner creates a new real command runner
func NewRunner() Runner {
	return &RealRunner{}
}

// Run executes the named command and returns its combined output
func (r *RealRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec,G204
}

// LookPath searches for an executable in the directories named by PATH
func (r *RealRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
