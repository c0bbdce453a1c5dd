package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why an installation stage failed.
type ErrorKind int

const (
	// EnvironmentError means the host or guest environment is unusable.
	EnvironmentError ErrorKind = iota
	// DiscoveryError means no usable guest instance could be resolved.
	DiscoveryError
	// ValidationError means an input failed validation. Never auto-corrected.
	ValidationError
	// DownloadError means the release artifact could not be fetched.
	DownloadError
	// IntegrityError means the artifact did not match its published checksum.
	IntegrityError
	// PermissionError means the guest refused a privileged operation.
	PermissionError
	// ConfigIOError means a configuration file could not be read or written.
	ConfigIOError
	// CompanionStateError means the companion app is running and was left alone.
	CompanionStateError
)

// String returns a human-readable label for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case EnvironmentError:
		return "Environment Error"
	case DiscoveryError:
		return "Discovery Error"
	case ValidationError:
		return "Validation Error"
	case DownloadError:
		return "Download Error"
	case IntegrityError:
		return "Integrity Error"
	case PermissionError:
		return "Permission Error"
	case ConfigIOError:
		return "Config I/O Error"
	case CompanionStateError:
		return "ShareX State Error"
	default:
		return "Unknown Error"
	}
}

var (
	ErrVirtualizationUnavailable = errors.New("WSL is not available")
	ErrNoInstances               = errors.New("no WSL distributions found")
	ErrInstanceNotFound          = errors.New("WSL distribution not found")
	ErrAmbiguous                 = errors.New("multiple WSL distributions found and none selected")
	ErrInvalidIdentifier         = errors.New("invalid distribution name")
	ErrUnsupportedArch           = errors.New("unsupported architecture")
	ErrChecksumMismatch          = errors.New("checksum mismatch")
	ErrConfigNotFound            = errors.New("ShareX configuration not found")
	ErrCompanionRunning          = errors.New("ShareX is running")
	ErrAborted                   = errors.New("installation cancelled")
)

// Error is a classified stage failure carrying remediation hints.
type Error struct {
	Kind  ErrorKind
	Op    string   // stage that failed, e.g. "download"
	Err   error    // underlying cause
	Hints []string // actionable suggestions for the user
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds a classified error with the default hints for its kind.
// Passing an *Error through returns it unchanged so the innermost
// classification wins.
func newError(kind ErrorKind, op string, err error) error {
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err, Hints: hintsForError(kind, err)}
}

// AsError checks whether err wraps a classified *Error and returns it.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// hintsForError returns remediation steps based on the error kind.
func hintsForError(kind ErrorKind, err error) []string {
	switch kind {
	case EnvironmentError:
		if errors.Is(err, ErrUnsupportedArch) {
			return []string{
				"Only amd64 (x86_64) and arm64 (aarch64) guests are supported",
			}
		}
		return []string{
			"Make sure WSL is installed: run `wsl --install` in an elevated PowerShell",
			"Run `wsl --status` to check that the subsystem is enabled",
		}

	case DiscoveryError:
		switch {
		case errors.Is(err, ErrAmbiguous):
			return []string{
				"Pass the distribution explicitly: `clipbridge install --instance <name>`",
				"Run `clipbridge probe` to list available distributions",
			}
		case errors.Is(err, ErrInstanceNotFound):
			return []string{
				"Check the name with `wsl --list --verbose`",
				"Run `clipbridge probe` to list available distributions",
			}
		}
		return []string{
			"Install a distribution, e.g. `wsl --install -d Ubuntu`",
			"Then re-run `clipbridge install`",
		}

	case ValidationError:
		if errors.Is(err, ErrInvalidIdentifier) {
			return []string{
				"Distribution names may only contain letters, digits, '_' and '-'",
				"Rename the distribution with `wsl --export` / `wsl --import` if needed",
			}
		}
		return []string{
			"Check the value above and run the installer again",
			"Run `clipbridge install --help` for the accepted ranges",
		}

	case DownloadError:
		return []string{
			"Check your internet connection",
			"If behind a proxy, set HTTPS_PROXY before running the installer",
			"Use --release-base to point at a mirror",
		}

	case IntegrityError:
		return []string{
			"The downloaded binary does not match the published checksum; nothing was installed",
			"Try again later, the release may be mid-upload",
			"Report the mismatch to the project maintainers if it persists",
		}

	case PermissionError:
		return []string{
			"Installing to /usr/local/bin runs as root inside the distribution; check that `wsl -u root` works",
			"Re-run with `--scope user` to install into ~/.local/bin instead",
		}

	case ConfigIOError:
		if errors.Is(err, ErrConfigNotFound) {
			return []string{
				"Start ShareX once so it creates ApplicationConfig.json",
				"Or pass the file with `--sharex-config <path>`",
				"Or skip this step with `--skip-sharex`",
			}
		}
		return []string{
			"Check that the file is not open in another program",
			"Restore from the .backup-* file next to it if it was damaged",
		}

	case CompanionStateError:
		return []string{
			"Close ShareX (including its tray icon) and re-run the installer",
			"Or skip this step with `--skip-sharex`",
		}

	default:
		return []string{"Check the error message above for details"}
	}
}

// FormatError renders a classified error with its hints for the terminal.
func FormatError(err error) string {
	e, ok := AsError(err)
	if !ok {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, h := range e.Hints {
		b.WriteString("\n  - ")
		b.WriteString(h)
	}
	return b.String()
}
