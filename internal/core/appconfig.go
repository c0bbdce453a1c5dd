package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/barysiuk/clipbridge/internal/core/guest"
)

const (
	// AppConfigDirName is the bridge's directory under the XDG config home.
	AppConfigDirName = "wsl-clip-bridge"
	// AppConfigFileName is the bridge's config file.
	AppConfigFileName = "config.toml"
)

const appConfigHeader = "# wsl-clip-bridge configuration\n# Written by clipbridge; re-running the installer overwrites this file.\n\n"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RenderSettings encodes s as the bridge's config.toml: LF line endings and
// no BOM.
func RenderSettings(s AppSettings) ([]byte, error) {
	if err := ValidateSettings(s); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(appConfigHeader)
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	return bytes.ReplaceAll(buf.Bytes(), []byte("\r\n"), []byte("\n")), nil
}

// ParseSettings decodes a config.toml, filling unset keys with defaults.
func ParseSettings(data []byte) (AppSettings, error) {
	s := DefaultSettings()
	data = bytes.TrimPrefix(data, utf8BOM)
	if err := toml.Unmarshal(data, &s); err != nil {
		return AppSettings{}, newError(ConfigIOError, "config", fmt.Errorf("parsing %s: %w", AppConfigFileName, err))
	}
	return s, nil
}

// MergeAllowedDirectories adds dirs to the allowed_directories of doc. When
// every dir is already present, doc is returned unchanged and changed is
// false.
func MergeAllowedDirectories(doc []byte, dirs []string) (out []byte, changed bool, err error) {
	s, err := ParseSettings(doc)
	if err != nil {
		return nil, false, err
	}
	seen := make(map[string]bool, len(s.AllowedDirectories))
	for _, d := range s.AllowedDirectories {
		seen[d] = true
	}
	var added []string
	for _, d := range dirs {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		added = append(added, d)
	}
	if len(added) == 0 {
		return doc, false, nil
	}
	sort.Strings(added)
	s.AllowedDirectories = append(s.AllowedDirectories, added...)
	out, err = RenderSettings(s)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// AppConfigWriter writes the bridge's config.toml inside a guest.
type AppConfigWriter struct {
	runner guest.Runner
	log    zerolog.Logger
	report Reporter
}

// NewAppConfigWriter creates an AppConfigWriter.
func NewAppConfigWriter(runner guest.Runner, log zerolog.Logger, report Reporter) *AppConfigWriter {
	if report == nil {
		report = NopReporter{}
	}
	return &AppConfigWriter{runner: runner, log: log, report: report}
}

// ConfigPath returns the guest path the bridge reads its config from:
// $XDG_CONFIG_HOME/wsl-clip-bridge/config.toml, else
// $HOME/.config/wsl-clip-bridge/config.toml.
func (w *AppConfigWriter) ConfigPath(ctx context.Context, instance string) (string, error) {
	base, err := GuestEnv(ctx, w.runner, instance, "XDG_CONFIG_HOME")
	if err != nil {
		return "", err
	}
	if base == "" || !path.IsAbs(base) {
		home, err := ResolveGuestHome(ctx, w.runner, instance, "~/.config")
		if err != nil {
			return "", err
		}
		base = home
	}
	return path.Join(base, AppConfigDirName, AppConfigFileName), nil
}

// WriteConfig renders settings and replaces the guest config file with it.
// It returns the guest path written.
func (w *AppConfigWriter) WriteConfig(ctx context.Context, instance string, settings AppSettings) (string, error) {
	data, err := RenderSettings(settings)
	if err != nil {
		return "", err
	}
	dest, err := w.ConfigPath(ctx, instance)
	if err != nil {
		return "", err
	}
	if err := w.put(ctx, instance, dest, data); err != nil {
		return "", err
	}
	w.log.Debug().Str("path", dest).Int("ttl_secs", settings.TTLSeconds).Msg("wrote bridge config")
	w.report.Success(fmt.Sprintf("Wrote %s", dest))
	return dest, nil
}

// ReadConfig returns the guest config file contents. found is false when the
// file does not exist.
func (w *AppConfigWriter) ReadConfig(ctx context.Context, instance, guestPath string) (data []byte, found bool, err error) {
	if _, err := w.runner.Run(ctx, instance, "test", "-f", guestPath); err != nil {
		var ce *guest.CommandError
		if errors.As(err, &ce) {
			return nil, false, nil
		}
		return nil, false, classifyGuestError("config", err)
	}
	out, err := w.runner.Run(ctx, instance, "cat", guestPath)
	if err != nil {
		return nil, false, newError(ConfigIOError, "config", err)
	}
	return out, true, nil
}

// AllowDirectories merges dirs into the guest config's allowed_directories.
// The file is left untouched if nothing is new.
func (w *AppConfigWriter) AllowDirectories(ctx context.Context, instance, guestPath string, dirs []string) (bool, error) {
	for _, d := range dirs {
		if !path.IsAbs(d) {
			return false, newError(ValidationError, "config", fmt.Errorf("allowed directory %q is not absolute", d))
		}
	}
	doc, found, err := w.ReadConfig(ctx, instance, guestPath)
	if err != nil {
		return false, err
	}
	if !found {
		if doc, err = RenderSettings(DefaultSettings()); err != nil {
			return false, err
		}
	}
	out, changed, err := MergeAllowedDirectories(doc, dirs)
	if err != nil || !changed {
		return false, err
	}
	if err := w.put(ctx, instance, guestPath, out); err != nil {
		return false, err
	}
	w.log.Debug().Strs("dirs", dirs).Str("path", guestPath).Msg("allowed directories updated")
	return true, nil
}

// put stages data in a host temp file and copies it over guestPath.
func (w *AppConfigWriter) put(ctx context.Context, instance, guestPath string, data []byte) error {
	tmp, err := os.CreateTemp("", "clipbridge-config-*.toml")
	if err != nil {
		return newError(ConfigIOError, "config", fmt.Errorf("creating temp file: %w", err))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return newError(ConfigIOError, "config", fmt.Errorf("writing temp file: %w", err))
	}

	src, err := w.runner.ToGuestPath(ctx, instance, tmp.Name())
	if err != nil {
		return classifyGuestError("config", err)
	}
	if _, err := w.runner.Run(ctx, instance, "mkdir", "-p", path.Dir(guestPath)); err != nil {
		return classifyGuestError("config", err)
	}
	if _, err := w.runner.Run(ctx, instance, "cp", "-f", src, guestPath); err != nil {
		return classifyGuestError("config", err)
	}
	return nil
}
