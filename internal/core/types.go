// Package core provides the installation logic for clipbridge.
// It has zero UI dependencies and is independently testable: every prompt
// goes through the Prompter interface and every guest command through
// guest.Runner.
package core

import (
	"fmt"
	"strings"
)

// Arch is a guest CPU architecture the bridge binary is published for.
type Arch string

const (
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
)

// ParseArch maps `uname -m` style names to an Arch.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86_64", "amd64", "x64":
		return ArchAMD64, nil
	case "aarch64", "arm64", "armv8", "armv8l":
		return ArchARM64, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedArch, s)
	}
}

// GuestInstance is a WSL distribution resolved for this run.
type GuestInstance struct {
	Name string
	Arch Arch
}

// Scope selects where the binary is installed inside the guest.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeSystem Scope = "system"
)

// ParseScope validates a --scope value.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(s)) {
	case ScopeUser, "":
		return ScopeUser, nil
	case ScopeSystem:
		return ScopeSystem, nil
	default:
		return "", fmt.Errorf("unknown scope %q (want user or system)", s)
	}
}

// InstallTarget describes an install location and the argument vectors used
// to populate it. Chosen once per run, immutable afterwards.
type InstallTarget struct {
	Scope             Scope
	BasePath          string   // directory receiving the binary; "~/" is resolved in the guest
	RequiresElevation bool     // verbs run as root (wsl -u root)
	CopyVerb          []string // copies the staged binary next to its destination
	DirInitVerb       []string // creates BasePath
	ChmodVerb         []string // marks the staged binary executable
	MoveVerb          []string // moves the staged binary into place
	RemoveVerb        []string // removes a leftover staged binary
}

// RunAs returns the guest user the verbs run as ("" is the default user).
func (t InstallTarget) RunAs() string {
	if t.RequiresElevation {
		return "root"
	}
	return ""
}

func baseVerbs(t InstallTarget) InstallTarget {
	t.CopyVerb = []string{"cp", "-f"}
	t.DirInitVerb = []string{"mkdir", "-p"}
	t.ChmodVerb = []string{"chmod", "0755"}
	t.MoveVerb = []string{"mv", "-f"}
	t.RemoveVerb = []string{"rm", "-f"}
	return t
}

// TargetFor returns the canonical InstallTarget for a scope. Each call
// returns fresh verb slices.
func TargetFor(s Scope) InstallTarget {
	if s == ScopeSystem {
		return baseVerbs(InstallTarget{
			Scope:             ScopeSystem,
			BasePath:          "/usr/local/bin",
			RequiresElevation: true,
		})
	}
	return baseVerbs(InstallTarget{
		Scope:    ScopeUser,
		BasePath: "~/.local/bin",
	})
}

// ReleaseArtifact is a downloaded release binary.
type ReleaseArtifact struct {
	URL              string
	LocalTempPath    string
	ExpectedChecksum string // empty when no sidecar was published
	ActualChecksum   string
}

// Verified reports whether a published checksum was present and matched.
func (a ReleaseArtifact) Verified() bool {
	return ChecksumsMatch(a.ExpectedChecksum, a.ActualChecksum)
}

// Bridge settings limits and defaults.
const (
	DefaultTTLSeconds        = 300
	DefaultMaxImageDimension = 1568
	DefaultMaxFileSizeMB     = 100
	MaxTTLSeconds            = 86400
	MaxImageDimensionLimit   = 10000
)

// AppSettings is the bridge binary's own configuration (config.toml).
type AppSettings struct {
	TTLSeconds         int      `toml:"ttl_secs" comment:"TTL for primed clipboard data in seconds (1-86400)"`
	MaxImageDimension  int      `toml:"max_image_dimension" comment:"Maximum image dimension in pixels; larger images are downscaled (0 disables)"`
	MaxFileSizeMB      int      `toml:"max_file_size_mb" comment:"Maximum file size in MB"`
	RestrictToHome     bool     `toml:"restrict_to_home" comment:"Restrict file access to the home directory"`
	AllowedDirectories []string `toml:"allowed_directories,omitempty" comment:"Only allow files from these directories"`
}

// DefaultSettings returns the bridge's documented defaults.
func DefaultSettings() AppSettings {
	return AppSettings{
		TTLSeconds:        DefaultTTLSeconds,
		MaxImageDimension: DefaultMaxImageDimension,
		MaxFileSizeMB:     DefaultMaxFileSizeMB,
		RestrictToHome:    true,
	}
}

// ValidateSettings checks the documented ranges.
func ValidateSettings(s AppSettings) error {
	if s.TTLSeconds < 1 || s.TTLSeconds > MaxTTLSeconds {
		return newError(ValidationError, "settings", fmt.Errorf("ttl_secs must be between 1 and %d, got %d", MaxTTLSeconds, s.TTLSeconds))
	}
	if s.MaxImageDimension < 0 || s.MaxImageDimension > MaxImageDimensionLimit {
		return newError(ValidationError, "settings", fmt.Errorf("max_image_dimension must be between 0 and %d, got %d", MaxImageDimensionLimit, s.MaxImageDimension))
	}
	if s.MaxFileSizeMB < 1 {
		return newError(ValidationError, "settings", fmt.Errorf("max_file_size_mb must be positive, got %d", s.MaxFileSizeMB))
	}
	for _, d := range s.AllowedDirectories {
		if !strings.HasPrefix(d, "/") {
			return newError(ValidationError, "settings", fmt.Errorf("allowed directory %q is not absolute", d))
		}
	}
	return nil
}

// CompanionActionName is the ShareX action registered by the installer.
const CompanionActionName = "Copy Image to WSL Clipboard"

// CompanionArgs is the ShareX argument template passing the capture path.
const CompanionArgs = `"%input"`

// CompanionAction is the ShareX external-program entry.
type CompanionAction struct {
	IsActive        bool   `json:"IsActive"`
	Name            string `json:"Name"`
	Path            string `json:"Path"`
	Args            string `json:"Args"`
	HiddenWindow    bool   `json:"HiddenWindow"`
	DeleteInputFile bool   `json:"DeleteInputFile"`
}

// NewCompanionAction returns the action pointing at scriptPath.
func NewCompanionAction(scriptPath string) CompanionAction {
	return CompanionAction{
		IsActive:     true,
		Name:         CompanionActionName,
		Path:         scriptPath,
		Args:         CompanionArgs,
		HiddenWindow: true,
	}
}

// ConfigBackup records a timestamped copy made before mutating a file.
type ConfigBackup struct {
	OriginalPath string
	BackupPath   string
}
