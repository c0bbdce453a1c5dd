package guest

import (
	"errors"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"Ubuntu", true},
		{"Ubuntu-22_04", true},
		{"debian", true},
		{"a", true},
		{"", false},
		{"Ubuntu 22.04", false},
		{"Ubuntu-22.04", false},
		{"x;rm -rf /", false},
		{"x|y", false},
		{"x`id`", false},
		{"x'y", false},
		{`x"y`, false},
		{"x\ty", false},
		{"x\ny", false},
		{"$(id)", false},
		{"Übuntu", false},
	}

	for _, tt := range tests {
		err := ValidateName(tt.name)
		if tt.valid && err != nil {
			t.Errorf("ValidateName(%q) error: %v", tt.name, err)
		}
		if !tt.valid {
			if err == nil {
				t.Errorf("ValidateName(%q) should fail", tt.name)
			} else if !errors.Is(err, ErrInvalidName) {
				t.Errorf("ValidateName(%q) error = %v, want ErrInvalidName", tt.name, err)
			}
		}
		if IsValidName(tt.name) != tt.valid {
			t.Errorf("IsValidName(%q) = %v, want %v", tt.name, !tt.valid, tt.valid)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"Ubuntu":             "Ubuntu",
		"Ubuntu-22.04":       "Ubuntu-2204",
		"x & calc.exe":       "xcalcexe",
		`"quoted"`:           "quoted",
		"%PATH%":             "PATH",
		"a_b-c":              "a_b-c",
		"^&|<>()":            "",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
