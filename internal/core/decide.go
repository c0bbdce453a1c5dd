package core

import (
	"fmt"
	"strconv"
)

// Prompter asks the user questions. The orchestrator never talks to the
// terminal directly; internal/tui provides the interactive implementation and
// AutoPrompter answers every question with its default.
type Prompter interface {
	Confirm(question string, def bool) (bool, error)
	Select(question string, options []string, def int) (int, error)
	Input(question, def string, validate func(string) error) (string, error)
}

// AutoPrompter answers every prompt with its default. Used for --yes runs.
type AutoPrompter struct{}

func (AutoPrompter) Confirm(_ string, def bool) (bool, error) { return def, nil }

func (AutoPrompter) Select(_ string, options []string, def int) (int, error) {
	if def < 0 || def >= len(options) {
		return 0, fmt.Errorf("no default option")
	}
	return def, nil
}

func (AutoPrompter) Input(_ string, def string, validate func(string) error) (string, error) {
	if validate != nil {
		if err := validate(def); err != nil {
			return "", err
		}
	}
	return def, nil
}

// SettingsOverrides are bridge settings fixed on the command line. Nil
// fields are asked for (or defaulted).
type SettingsOverrides struct {
	TTLSeconds        *int
	MaxImageDimension *int
	RestrictToHome    *bool
}

// DecideSettings merges overrides onto base and validates the result.
// It is pure: no prompts, no I/O.
func DecideSettings(base AppSettings, o SettingsOverrides) (AppSettings, error) {
	s := base
	s.AllowedDirectories = append([]string(nil), base.AllowedDirectories...)
	if o.TTLSeconds != nil {
		s.TTLSeconds = *o.TTLSeconds
	}
	if o.MaxImageDimension != nil {
		s.MaxImageDimension = *o.MaxImageDimension
	}
	if o.RestrictToHome != nil {
		s.RestrictToHome = *o.RestrictToHome
	}
	if err := ValidateSettings(s); err != nil {
		return AppSettings{}, err
	}
	return s, nil
}

// AskSettings fills every unset override through p, then decides.
func AskSettings(p Prompter, base AppSettings, o SettingsOverrides) (AppSettings, error) {
	if o.TTLSeconds == nil {
		v, err := askInt(p, fmt.Sprintf("Clipboard TTL in seconds (1-%d)", MaxTTLSeconds), base.TTLSeconds, 1, MaxTTLSeconds)
		if err != nil {
			return AppSettings{}, err
		}
		o.TTLSeconds = &v
	}
	if o.MaxImageDimension == nil {
		v, err := askInt(p, fmt.Sprintf("Maximum image dimension in pixels (0 disables, max %d)", MaxImageDimensionLimit), base.MaxImageDimension, 0, MaxImageDimensionLimit)
		if err != nil {
			return AppSettings{}, err
		}
		o.MaxImageDimension = &v
	}
	if o.RestrictToHome == nil {
		v, err := p.Confirm("Restrict file access to your home directory?", base.RestrictToHome)
		if err != nil {
			return AppSettings{}, err
		}
		o.RestrictToHome = &v
	}
	return DecideSettings(base, o)
}

// DecideScope resolves the install scope: explicit flag, then a prompt
// defaulting to the remembered scope, then user scope.
func DecideScope(p Prompter, explicit, remembered Scope) (Scope, error) {
	if explicit != "" {
		return explicit, nil
	}
	def := 0
	if remembered == ScopeSystem {
		def = 1
	}
	options := []string{
		"User (~/.local/bin, no root needed)",
		"System (/usr/local/bin, installed as root)",
	}
	idx, err := p.Select("Where should the bridge binary be installed?", options, def)
	if err != nil {
		return "", err
	}
	if idx == 1 {
		return ScopeSystem, nil
	}
	return ScopeUser, nil
}

func askInt(p Prompter, question string, def, lo, hi int) (int, error) {
	validate := func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("enter a whole number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
	s, err := p.Input(question, strconv.Itoa(def), validate)
	if err != nil {
		return 0, err
	}
	if err := validate(s); err != nil {
		return 0, newError(ValidationError, "settings", fmt.Errorf("%s: %w", question, err))
	}
	n, _ := strconv.Atoi(s)
	return n, nil
}
