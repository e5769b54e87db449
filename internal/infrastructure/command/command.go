// Package command runs external tools as argument vectors.
package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"strings"
)

// Command is a single external program invocation. Nothing is passed through a shell.
type Command struct {
	Name  string
	Args  []string
	Env   []string
	Stdin io.Reader
	// Stdout, when set, receives the program's output instead of the returned buffer.
	Stdout io.Writer
}

// String renders the argv for logs. Env is never included.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec and returns stdout, unless the
// command streams it to its own writer.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdin = c.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s failed: %w, output: %s",
			c.Name, err, strings.TrimSpace(stderr.String()+stdout.String()))
	}

	return stdout.Bytes(), nil
}

// LookPath reports whether name resolves to an executable.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Elevation rewrites commands to run under another account through sudo.
type Elevation struct {
	User        string   // target account, empty means root
	PreserveEnv []string // env names sudo must keep
	SudoPath    string
	current     func() (string, error)
}

// AsUser returns an Elevation that targets the given account.
func AsUser(name string, preserveEnv ...string) Elevation {
	return Elevation{User: name, PreserveEnv: preserveEnv}
}

// AsRoot returns an Elevation that targets the superuser.
func AsRoot() Elevation {
	return Elevation{User: "root"}
}

// NoElevation leaves commands untouched.
func NoElevation() Elevation {
	return Elevation{}
}

func (e Elevation) enabled() bool {
	return e.User != ""
}

func (e Elevation) currentUser() (string, error) {
	if e.current != nil {
		return e.current()
	}
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// Wrap prefixes c with sudo when the target account differs from the current one.
func (e Elevation) Wrap(c Command) Command {
	if !e.enabled() {
		return c
	}
	if name, err := e.currentUser(); err == nil && name == e.User {
		return c
	}

	sudo := e.SudoPath
	if sudo == "" {
		sudo = "sudo"
	}

	args := []string{"-n"}
	if len(e.PreserveEnv) > 0 {
		args = append(args, "--preserve-env="+strings.Join(e.PreserveEnv, ","))
	}
	if e.User != "root" {
		args = append(args, "-u", e.User)
	}
	args = append(args, "--", c.Name)
	args = append(args, c.Args...)

	return Command{Name: sudo, Args: args, Env: c.Env, Stdin: c.Stdin, Stdout: c.Stdout}
}

// WithCurrentUser overrides how the invoking account is resolved.
func (e Elevation) WithCurrentUser(fn func() (string, error)) Elevation {
	e.current = fn
	return e
}
