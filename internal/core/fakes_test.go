package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/barysiuk/clipbridge/internal/core/guest"
)

// localRunner is a guest.Runner that executes commands on the test host
// with HOME pointed at a temp dir. Host and guest paths are the same.
type localRunner struct {
	home      string
	instances []string
	failOn    map[string]string // argv[0] -> stderr to fail with

	mu    sync.Mutex
	calls [][]string
	users []string
}

func newLocalRunner(t *testing.T, instances ...string) *localRunner {
	t.Helper()
	if len(instances) == 0 {
		instances = []string{"Ubuntu"}
	}
	return &localRunner{home: t.TempDir(), instances: instances, failOn: map[string]string{}}
}

func (r *localRunner) List(context.Context) ([]string, error) {
	return append([]string(nil), r.instances...), nil
}

func (r *localRunner) Run(ctx context.Context, instance string, argv ...string) ([]byte, error) {
	return r.RunAs(ctx, instance, "", argv...)
}

func (r *localRunner) RunAs(ctx context.Context, instance, user string, argv ...string) ([]byte, error) {
	if err := guest.ValidateName(instance); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), argv...))
	r.users = append(r.users, user)
	r.mu.Unlock()

	if msg, ok := r.failOn[argv[0]]; ok {
		return nil, &guest.CommandError{Args: argv, Output: msg, Err: errors.New("exit status 1")}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "HOME="+r.home, "XDG_CONFIG_HOME=")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, &guest.CommandError{Args: argv, Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	return out, nil
}

func (r *localRunner) Shell(ctx context.Context, instance, script string, args ...string) ([]byte, error) {
	return r.Run(ctx, instance, append([]string{"sh", "-c", script, "sh"}, args...)...)
}

func (r *localRunner) ToGuestPath(_ context.Context, instance, hostPath string) (string, error) {
	if err := guest.ValidateName(instance); err != nil {
		return "", err
	}
	return hostPath, nil
}

// ran reports whether a command starting with name was executed.
func (r *localRunner) ran(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if len(c) > 0 && c[0] == name {
			return true
		}
	}
	return false
}

// scriptedPrompter answers prompts from queues and records the questions.
type scriptedPrompter struct {
	confirms  []bool
	selects   []int
	inputs    []string
	questions []string
}

func (p *scriptedPrompter) Confirm(q string, def bool) (bool, error) {
	p.questions = append(p.questions, q)
	if len(p.confirms) == 0 {
		return def, nil
	}
	v := p.confirms[0]
	p.confirms = p.confirms[1:]
	return v, nil
}

func (p *scriptedPrompter) Select(q string, options []string, def int) (int, error) {
	p.questions = append(p.questions, q)
	if len(p.selects) == 0 {
		return def, nil
	}
	v := p.selects[0]
	p.selects = p.selects[1:]
	if v < 0 || v >= len(options) {
		return 0, fmt.Errorf("scripted selection %d out of range", v)
	}
	return v, nil
}

func (p *scriptedPrompter) Input(q, def string, validate func(string) error) (string, error) {
	p.questions = append(p.questions, q)
	v := def
	if len(p.inputs) > 0 {
		v = p.inputs[0]
		p.inputs = p.inputs[1:]
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return "", err
		}
	}
	return v, nil
}
