// Package session spawns the tmux client that attaches a pseudo-terminal to
// the deployment's one named session, creating the session first if needed.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"

	"github.com/google/shlex"
)

const (
	DefaultName  = "main"
	DefaultShell = "/bin/sh"
	DefaultTmux  = "tmux"

	// Term is advertised to tmux so it enables 256 colors.
	Term = "xterm-256color"
)

var (
	ErrSpawn       = errors.New("unable to spawn tmux")
	ErrInvalidName = errors.New("invalid session name")
)

// Variables stripped from the inherited environment. TMUX and TMUX_PANE
// make tmux refuse to attach when the daemon itself runs inside tmux.
var overriddenEnv = []string{"TERM", "SHELL", "TMUX", "TMUX_PANE"}

// Launcher describes how to reach the named session.
type Launcher struct {
	// Tmux is the tmux command line, looked up in PATH by the shell. It may
	// carry leading arguments, e.g. "tmux -L webterm" for a dedicated server.
	Tmux string
	// Shell becomes the default shell of a newly created session. An
	// existing session keeps the shell it was created with.
	Shell string
	// Session is the tmux session name shared by every connection.
	Session string
}

// ValidateName rejects names tmux cannot target unambiguously.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.ContainsAny(name, ":."):
		return fmt.Errorf("%w: %q contains ':' or '.'", ErrInvalidName, name)
	case strings.ContainsAny(name, "'\n"):
		return fmt.Errorf("%w: %q contains a quote or newline", ErrInvalidName, name)
	}

	return nil
}

func (l Launcher) tmux() string {
	if l.Tmux == "" {
		return DefaultTmux
	}
	return l.Tmux
}

// TmuxArgv splits Tmux into the executable and its leading arguments.
func (l Launcher) TmuxArgv() ([]string, error) {
	argv, err := shlex.Split(l.tmux())
	if err != nil {
		return nil, fmt.Errorf("error parsing tmux command %q: %w", l.tmux(), err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("tmux command %q is empty", l.tmux())
	}

	return argv, nil
}

// Validate checks the session name and the tmux command line.
func (l Launcher) Validate() error {
	if err := ValidateName(l.name()); err != nil {
		return err
	}
	_, err := l.TmuxArgv()
	return err
}

func (l Launcher) shell() string {
	if l.Shell == "" {
		return DefaultShell
	}
	return l.Shell
}

func (l Launcher) name() string {
	if l.Session == "" {
		return DefaultName
	}
	return l.Session
}

// Script is the shell line that creates the session detached when it is
// missing and then replaces the shell with the attach client, so the pty
// lives exactly as long as the attachment.
func (l Launcher) Script() string {
	argv, err := l.TmuxArgv()
	if err != nil {
		argv = []string{l.tmux()}
	}

	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quote(arg)
	}
	tmux := strings.Join(quoted, " ")
	exact := quote("=" + l.name())

	return fmt.Sprintf(
		"%[1]s has-session -t %[2]s 2>/dev/null || %[1]s new-session -d -s %[3]s; exec %[1]s attach-session -t %[2]s",
		tmux, exact, quote(l.name()),
	)
}

// Command is the argv of the child process.
func (l Launcher) Command() []string {
	return []string{"sh", "-c", l.Script()}
}

// Env is the child's environment: the daemon's own environment with TERM and
// SHELL replaced.
func (l Launcher) Env() []string {
	env := make([]string, 0, len(os.Environ())+2)
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if slices.Contains(overriddenEnv, key) {
			continue
		}
		env = append(env, kv)
	}

	return append(env,
		"TERM="+Term,
		"SHELL="+l.shell(),
	)
}

// Start spawns the attach-or-create command with tty as its stdio and
// controlling terminal.
func (l Launcher) Start(ctx context.Context, tty *os.File) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	argv := l.Command()
	// Not CommandContext: the child must never be killed on our behalf.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = l.Env()
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	p := &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go p.wait()

	return p, nil
}

// Exists reports whether the named session is running.
func (l Launcher) Exists(ctx context.Context) (bool, error) {
	argv, err := l.TmuxArgv()
	if err != nil {
		return false, err
	}

	args := slices.Concat(argv[1:], []string{"has-session", "-t", "=" + l.name()})
	cmd := exec.CommandContext(ctx, argv[0], args...)
	cmd.Env = l.Env()

	err = cmd.Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}

	return false, err
}

// Process is the reference to a spawned attach client.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	err      error
	released bool
}

// wait collects the exit status so the child never lingers as a zombie.
func (p *Process) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.err = err
	p.mu.Unlock()

	close(p.done)
}

// Pid of the attach client.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the attach client exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err is the exit error of the attach client, valid after Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}

// Release drops the reference without signalling the child. The attach
// client detaches by itself when its terminal hangs up, and the tmux session
// keeps running.
func (p *Process) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released = true
}

func (p *Process) isReleased() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.released
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
