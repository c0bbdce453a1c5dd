// Package guest talks to Linux guest instances through the host's
// virtualization CLI (wsl.exe).
//
// Commands are always passed as argument vectors. The only composed shell
// text is Shell's constant script, and user data reaches it as positional
// arguments.
package guest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// DefaultBinary is the virtualization CLI used when CLIPBRIDGE_WSL is unset.
const DefaultBinary = "wsl.exe"

// BinaryEnvVar overrides the virtualization CLI binary.
const BinaryEnvVar = "CLIPBRIDGE_WSL"

// ErrUnavailable is returned when the virtualization CLI cannot be executed.
var ErrUnavailable = errors.New("virtualization subsystem unavailable")

// Runner executes commands inside guest instances.
type Runner interface {
	// List enumerates the guest instance names known to the host.
	List(ctx context.Context) ([]string, error)
	// Run executes argv inside the instance without a shell.
	Run(ctx context.Context, instance string, argv ...string) ([]byte, error)
	// RunAs is Run as a specific guest user ("" for the default user).
	RunAs(ctx context.Context, instance, user string, argv ...string) ([]byte, error)
	// Shell runs a constant sh script with args as "$1".. positional parameters.
	Shell(ctx context.Context, instance, script string, args ...string) ([]byte, error)
	// ToGuestPath translates a host path into the guest's path namespace.
	ToGuestPath(ctx context.Context, instance, hostPath string) (string, error)
}

// CommandError is returned when a guest command exits unsuccessfully.
type CommandError struct {
	Args   []string
	Output string // stderr, falling back to stdout
	Err    error
}

func (e *CommandError) Error() string {
	msg := firstLine(e.Output)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", strings.Join(e.Args, " "), msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// WSL is the Runner backed by wsl.exe.
type WSL struct {
	binary string
}

// NewWSL creates a WSL runner. An empty binary resolves to $CLIPBRIDGE_WSL
// or wsl.exe.
func NewWSL(binary string) *WSL {
	if binary == "" {
		binary = os.Getenv(BinaryEnvVar)
	}
	if binary == "" {
		binary = DefaultBinary
	}
	return &WSL{binary: binary}
}

// Binary returns the CLI the runner invokes.
func (w *WSL) Binary() string { return w.binary }

// List runs `wsl --list --quiet`.
func (w *WSL) List(ctx context.Context) ([]string, error) {
	out, err := w.exec(ctx, "--list", "--quiet")
	if err != nil {
		var ce *CommandError
		if errors.As(err, &ce) && strings.Contains(strings.ToLower(ce.Output), "no installed distributions") {
			return nil, nil
		}
		return nil, err
	}
	return ParseList(out), nil
}

// Run executes argv in the instance via --exec, bypassing the guest shell.
func (w *WSL) Run(ctx context.Context, instance string, argv ...string) ([]byte, error) {
	return w.RunAs(ctx, instance, "", argv...)
}

// RunAs executes argv as user. WSL switches users without a password, so
// root is how privileged steps are performed.
func (w *WSL) RunAs(ctx context.Context, instance, user string, argv ...string) ([]byte, error) {
	if err := ValidateName(instance); err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command given")
	}
	args := []string{"-d", instance}
	if user != "" {
		if err := ValidateName(user); err != nil {
			return nil, fmt.Errorf("guest user: %w", err)
		}
		args = append(args, "-u", user)
	}
	args = append(args, "--exec")
	args = append(args, argv...)
	return w.exec(ctx, args...)
}

// Shell runs script with sh -c. script must be a constant; args are passed
// through as positional parameters and are never spliced into the text.
func (w *WSL) Shell(ctx context.Context, instance, script string, args ...string) ([]byte, error) {
	argv := append([]string{"sh", "-c", script, "sh"}, args...)
	return w.Run(ctx, instance, argv...)
}

// ToGuestPath runs `wslpath -u` on hostPath.
func (w *WSL) ToGuestPath(ctx context.Context, instance, hostPath string) (string, error) {
	out, err := w.Run(ctx, instance, "wslpath", "-u", hostPath)
	if err != nil {
		return "", fmt.Errorf("translating %s: %w", hostPath, err)
	}
	p := strings.TrimSpace(string(out))
	if p == "" {
		return "", fmt.Errorf("translating %s: empty result", hostPath)
	}
	return p, nil
}

func (w *WSL) exec(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, w.binary, args...)
	cmd.Env = append(os.Environ(), "WSL_UTF8=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, w.binary, execErr.Err)
		}
		// A path binary that cannot be started fails in Start with a PathError.
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, w.binary, err)
		}
		output := decodeOutput(stderr.Bytes())
		if strings.TrimSpace(output) == "" {
			output = decodeOutput(out)
		}
		return out, &CommandError{
			Args:   append([]string{w.binary}, args...),
			Output: strings.TrimSpace(output),
			Err:    err,
		}
	}
	return out, nil
}

// ParseList turns `wsl --list --quiet` output into instance names.
func ParseList(out []byte) []string {
	var names []string
	for _, line := range strings.Split(decodeOutput(out), "\n") {
		line = strings.TrimSpace(strings.Trim(line, "\x00\r"))
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names
}

// decodeOutput converts wsl.exe output to a Go string. Older wsl.exe builds
// write UTF-16LE regardless of WSL_UTF8.
func decodeOutput(b []byte) string {
	if bytes.IndexByte(b, 0) < 0 {
		return string(b)
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	s, err := dec.Bytes(b)
	if err != nil {
		return string(bytes.ReplaceAll(b, []byte{0}, nil))
	}
	return string(s)
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
