package guest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"unicode/utf16"
)

func utf16le(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 0, len(units)*2+2)
	b = append(b, 0xFF, 0xFE)
	for _, u := range units {
		b = append(b, byte(u), byte(u>>8))
	}
	return b
}

func TestParseList_UTF8(t *testing.T) {
	got := ParseList([]byte("Ubuntu\r\nDebian\r\n\r\n"))
	want := []string{"Ubuntu", "Debian"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseList() = %v, want %v", got, want)
	}
}

func TestParseList_UTF16(t *testing.T) {
	got := ParseList(utf16le("Ubuntu-22.04\r\ndocker-desktop\r\n"))
	want := []string{"Ubuntu-22.04", "docker-desktop"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseList() = %v, want %v", got, want)
	}
}

func TestParseList_Empty(t *testing.T) {
	if got := ParseList(nil); len(got) != 0 {
		t.Errorf("ParseList(nil) = %v, want empty", got)
	}
}

func TestNewWSL_BinaryResolution(t *testing.T) {
	t.Setenv(BinaryEnvVar, "")
	if got := NewWSL("").Binary(); got != DefaultBinary {
		t.Errorf("Binary() = %q, want %q", got, DefaultBinary)
	}

	t.Setenv(BinaryEnvVar, "/opt/fake-wsl")
	if got := NewWSL("").Binary(); got != "/opt/fake-wsl" {
		t.Errorf("Binary() = %q, want env override", got)
	}
	if got := NewWSL("explicit").Binary(); got != "explicit" {
		t.Errorf("Binary() = %q, want explicit", got)
	}
}

func TestWSL_MissingBinary(t *testing.T) {
	w := NewWSL(filepath.Join(t.TempDir(), "no-such-wsl"))
	_, err := w.List(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("List() error = %v, want ErrUnavailable", err)
	}
}

func TestWSL_NonExecutableBinary(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "wsl")
	if err := os.WriteFile(bin, []byte("not a program"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewWSL(bin).List(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("List() error = %v, want ErrUnavailable", err)
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		t.Errorf("got CommandError %v for a binary that never started", cmdErr)
	}
}

func TestWSL_RunRejectsInvalidName(t *testing.T) {
	w := NewWSL("wsl.exe")
	_, err := w.Run(context.Background(), "bad;name", "true")
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Run() error = %v, want ErrInvalidName", err)
	}
}
