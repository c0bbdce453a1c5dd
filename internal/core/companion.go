package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"

	"github.com/barysiuk/clipbridge/internal/core/guest"
)

const (
	// CompanionConfigFileName is ShareX's main settings file.
	CompanionConfigFileName = "ApplicationConfig.json"

	// afterCaptureMarker is the AfterCaptureJob flag that makes ShareX run
	// its external program actions.
	afterCaptureMarker = "PerformActions"

	backupTimeLayout = "20060102-150405"

	taskSettingsPtr = "/DefaultTaskSettings"
	programsPtr     = "/DefaultTaskSettings/ExternalPrograms"
	afterJobPtr     = "/DefaultTaskSettings/AfterCaptureJob"
)

// DefaultCompanionConfigPath returns %USERPROFILE%\Documents\ShareX\ApplicationConfig.json,
// or "" if the profile directory is unknown.
func DefaultCompanionConfigPath() string {
	profile := os.Getenv("USERPROFILE")
	if profile == "" {
		profile, _ = os.UserHomeDir()
	}
	if profile == "" {
		return ""
	}
	return filepath.Join(profile, "Documents", "ShareX", CompanionConfigFileName)
}

// LocateCompanionConfig returns the first candidate that is an existing
// regular file. Empty candidates are skipped.
func LocateCompanionConfig(candidates ...string) (string, error) {
	var tried []string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		tried = append(tried, c)
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	if len(tried) == 0 {
		return "", newError(ConfigIOError, "locate", ErrConfigNotFound)
	}
	return "", newError(ConfigIOError, "locate", fmt.Errorf("%w (looked in %s)", ErrConfigNotFound, strings.Join(tried, ", ")))
}

// CreateBackup copies path to a sibling named
// <file>.backup-YYYYMMDD-HHMMSS, adding -N when that name is taken.
// Existing backups are never overwritten.
func CreateBackup(path string, now time.Time) (*ConfigBackup, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, newError(ConfigIOError, "backup", err)
	}
	defer func() { _ = src.Close() }()
	info, err := src.Stat()
	if err != nil {
		return nil, newError(ConfigIOError, "backup", err)
	}

	base := path + ".backup-" + now.Format(backupTimeLayout)
	for n := 0; n < 1000; n++ {
		name := base
		if n > 0 {
			name = base + "-" + strconv.Itoa(n)
		}
		dst, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, newError(ConfigIOError, "backup", err)
		}
		_, err = io.Copy(dst, src)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(name)
			return nil, newError(ConfigIOError, "backup", fmt.Errorf("writing %s: %w", name, err))
		}
		return &ConfigBackup{OriginalPath: path, BackupPath: name}, nil
	}
	return nil, newError(ConfigIOError, "backup", fmt.Errorf("too many backups of %s at %s", path, base))
}

// MutateResult describes what MutateConfig changed.
type MutateResult struct {
	ActionAdded       bool
	ActionUpdated     bool
	DuplicatesRemoved int
	TaskEnabled       bool // AfterCaptureJob was rewritten to hold PerformActions once
}

// Changed reports whether the document was modified.
func (r *MutateResult) Changed() bool {
	return r.ActionAdded || r.ActionUpdated || r.DuplicatesRemoved > 0 || r.TaskEnabled
}

// MutateConfig registers action in a ShareX ApplicationConfig.json document.
// The entry is matched by exact name: an existing one has its fields
// updated in place (unknown fields kept), further entries with the same
// name are removed, and a missing one is appended. PerformActions is added
// to AfterCaptureJob if absent. Everything else in the document, a leading
// UTF-8 BOM and CRLF line endings included, is preserved. When nothing
// needs to change, data is returned as is.
func MutateConfig(data []byte, action CompanionAction) ([]byte, *MutateResult, error) {
	hasBOM := bytes.HasPrefix(data, utf8BOM)
	body := bytes.TrimPrefix(data, utf8BOM)
	crlf := bytes.Contains(body, []byte("\r\n"))

	root, err := hujson.Parse(body)
	if err != nil {
		return nil, nil, newError(ConfigIOError, "mutate", fmt.Errorf("parsing %s: %w", CompanionConfigFileName, err))
	}
	if _, ok := root.Value.(*hujson.Object); !ok {
		return nil, nil, newError(ConfigIOError, "mutate", fmt.Errorf("%s is not a JSON object", CompanionConfigFileName))
	}

	res := &MutateResult{}
	if err := upsertAction(&root, action, res); err != nil {
		return nil, nil, newError(ConfigIOError, "mutate", err)
	}
	if err := enableActions(&root, res); err != nil {
		return nil, nil, newError(ConfigIOError, "mutate", err)
	}
	if !res.Changed() {
		return data, res, nil
	}

	root.Format()
	removeTrailingCommas(&root)
	out := bytes.ReplaceAll(root.Pack(), []byte("\r\n"), []byte("\n"))
	if crlf {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	if hasBOM {
		out = append(append([]byte(nil), utf8BOM...), out...)
	}
	return out, res, nil
}

func upsertAction(root *hujson.Value, action CompanionAction, res *MutateResult) error {
	if err := ensureContainer(root, taskSettingsPtr, "{}"); err != nil {
		return err
	}
	if err := ensureContainer(root, programsPtr, "[]"); err != nil {
		return err
	}

	idx := actionIndexes(root, action.Name)
	if len(idx) == 0 {
		value, err := json.Marshal(action)
		if err != nil {
			return err
		}
		if err := patch(root, "add", programsPtr+"/-", value); err != nil {
			return fmt.Errorf("adding action: %w", err)
		}
		res.ActionAdded = true
		return nil
	}

	// Remove later duplicates from the back so earlier indexes stay valid.
	for i := len(idx) - 1; i > 0; i-- {
		if err := patch(root, "remove", fmt.Sprintf("%s/%d", programsPtr, idx[i]), nil); err != nil {
			return fmt.Errorf("removing duplicate action: %w", err)
		}
		res.DuplicatesRemoved++
	}

	entry := fmt.Sprintf("%s/%d", programsPtr, idx[0])
	fields := map[string]any{
		"IsActive":        action.IsActive,
		"Name":            action.Name,
		"Path":            action.Path,
		"Args":            action.Args,
		"HiddenWindow":    action.HiddenWindow,
		"DeleteInputFile": action.DeleteInputFile,
	}
	current := standardized(root)
	for _, k := range []string{"IsActive", "Name", "Path", "Args", "HiddenWindow", "DeleteInputFile"} {
		want, _ := json.Marshal(fields[k])
		got := gjson.GetBytes(current, fmt.Sprintf("DefaultTaskSettings.ExternalPrograms.%d.%s", idx[0], k))
		if got.Exists() && jsonEqual([]byte(got.Raw), want) {
			continue
		}
		op := "replace"
		if !got.Exists() {
			op = "add"
		}
		if err := patch(root, op, entry+"/"+k, want); err != nil {
			return fmt.Errorf("updating action %s: %w", k, err)
		}
		res.ActionUpdated = true
	}
	return nil
}

// AfterCaptureJob is a ShareX flags enum serialized as "A, B, C".
func enableActions(root *hujson.Value, res *MutateResult) error {
	cur := gjson.GetBytes(standardized(root), "DefaultTaskSettings.AfterCaptureJob")
	if !cur.Exists() || cur.Type == gjson.Null {
		value, _ := json.Marshal(afterCaptureMarker)
		op := "add"
		if cur.Exists() {
			op = "replace"
		}
		res.TaskEnabled = true
		return patch(root, op, afterJobPtr, value)
	}
	if cur.Type != gjson.String {
		return fmt.Errorf("AfterCaptureJob has unexpected type %s", cur.Type)
	}

	// Rewrite only when the set changes, so existing formatting survives.
	var flags []string
	seen := map[string]bool{}
	dirty := false
	for _, f := range strings.Split(cur.String(), ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if f == "None" || seen[f] {
			dirty = true
			continue
		}
		seen[f] = true
		flags = append(flags, f)
	}
	if !seen[afterCaptureMarker] {
		flags = append(flags, afterCaptureMarker)
		dirty = true
	}
	if !dirty {
		return nil
	}
	value, _ := json.Marshal(strings.Join(flags, ", "))
	res.TaskEnabled = true
	return patch(root, "replace", afterJobPtr, value)
}

// ensureContainer adds an empty object or array at ptr when the member is
// missing or null.
func ensureContainer(root *hujson.Value, ptr, empty string) error {
	v := root.Find(ptr)
	switch {
	case v == nil:
		return patch(root, "add", ptr, []byte(empty))
	case v.Value.Kind() == 'n':
		return patch(root, "replace", ptr, []byte(empty))
	case v.Value.Kind() != hujson.Kind(empty[0]):
		return fmt.Errorf("%s has unexpected type", ptr)
	}
	return nil
}

// actionIndexes returns the ExternalPrograms indexes whose Name is name.
func actionIndexes(root *hujson.Value, name string) []int {
	var idx []int
	names := gjson.GetBytes(standardized(root), "DefaultTaskSettings.ExternalPrograms.#.Name")
	for i, n := range names.Array() {
		if n.Type == gjson.String && n.Str == name {
			idx = append(idx, i)
		}
	}
	return idx
}

func patch(root *hujson.Value, op, ptr string, value []byte) error {
	var p string
	if value == nil {
		p = fmt.Sprintf(`[{"op":%q,"path":%q}]`, op, ptr)
	} else {
		p = fmt.Sprintf(`[{"op":%q,"path":%q,"value":%s}]`, op, ptr, value)
	}
	return root.Patch([]byte(p))
}

// standardized returns the document as plain JSON for gjson queries.
func standardized(root *hujson.Value) []byte {
	c := root.Clone()
	c.Standardize()
	return c.Pack()
}

func jsonEqual(a, b []byte) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	xa, _ := json.Marshal(x)
	ya, _ := json.Marshal(y)
	return bytes.Equal(xa, ya)
}

// removeTrailingCommas drops the trailing comma hujson.Format may leave
// after the last member so the output stays strict JSON.
func removeTrailingCommas(v *hujson.Value) {
	switch vv := v.Value.(type) {
	case *hujson.Object:
		for i := range vv.Members {
			removeTrailingCommas(&vv.Members[i].Name)
			removeTrailingCommas(&vv.Members[i].Value)
		}
		if len(vv.Members) > 0 {
			vv.Members[len(vv.Members)-1].Value.AfterExtra = nil
		}
	case *hujson.Array:
		for i := range vv.Elements {
			removeTrailingCommas(&vv.Elements[i])
		}
		if len(vv.Elements) > 0 {
			vv.Elements[len(vv.Elements)-1].AfterExtra = nil
		}
	}
}

var windowsEnvRef = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_()]*)%`)

// expandWindowsEnv expands %VAR% references the way ShareX does for its
// custom paths. Unknown variables are left as written.
func expandWindowsEnv(s string) string {
	return windowsEnvRef.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := os.LookupEnv(m[1 : len(m)-1]); ok {
			return v
		}
		return m
	})
}

// ScreenshotDirs returns the host directories ShareX saves captures to: the
// ShareX folder holding configPath and the screenshot folder (the custom
// path when enabled, else <ShareX folder>\Screenshots).
func ScreenshotDirs(data []byte, configPath string) []string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if v, err := hujson.Standardize(append([]byte(nil), data...)); err == nil {
		data = v
	}
	root := filepath.Dir(configPath)
	shots := filepath.Join(root, "Screenshots")
	if gjson.GetBytes(data, "UseCustomScreenshotsPath").Bool() {
		if custom := strings.TrimSpace(gjson.GetBytes(data, "CustomScreenshotsPath").String()); custom != "" {
			shots = expandWindowsEnv(custom)
		}
	}
	if shots == root {
		return []string{root}
	}
	return []string{root, shots}
}

// WriteCompanionConfig replaces path with data through a temp file and a
// rename in the same directory, keeping the file mode.
func WriteCompanionConfig(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return newError(ConfigIOError, "write", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return newError(ConfigIOError, "write", fmt.Errorf("creating temp file: %w", err))
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpPath, info.Mode().Perm())
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return newError(ConfigIOError, "write", fmt.Errorf("replacing %s: %w", path, err))
	}
	return nil
}

// CompanionRequest configures one ShareX integration.
type CompanionRequest struct {
	Instance      string
	BinaryPath    string // guest path of the installed bridge
	ConfigPath    string // located ApplicationConfig.json
	AppConfigPath string // guest path of the bridge config.toml
}

// CompanionResult describes the integration outcome.
type CompanionResult struct {
	ConfigPath       string
	ScriptPath       string
	Backup           *ConfigBackup // nil when the config needed no change
	Mutation         *MutateResult
	AllowedDirs      []string // guest paths merged into allowed_directories
	AllowedChanged   bool
	TerminatedShareX bool
}

// CompanionIntegrator wires the bridge into ShareX:
// ProcessGate, Mutate, BackupGuard, then Verify.
type CompanionIntegrator struct {
	runner  guest.Runner
	procs   ProcessChecker
	prompt  Prompter
	appConf *AppConfigWriter
	log     zerolog.Logger
	report  Reporter

	now    func() time.Time
	settle time.Duration
}

// NewCompanionIntegrator creates a CompanionIntegrator.
func NewCompanionIntegrator(runner guest.Runner, procs ProcessChecker, prompt Prompter, appConf *AppConfigWriter, log zerolog.Logger, report Reporter) *CompanionIntegrator {
	if procs == nil {
		procs = HostProcesses{}
	}
	if prompt == nil {
		prompt = AutoPrompter{}
	}
	if report == nil {
		report = NopReporter{}
	}
	return &CompanionIntegrator{
		runner:  runner,
		procs:   procs,
		prompt:  prompt,
		appConf: appConf,
		log:     log,
		report:  report,
		now:     time.Now,
		settle:  CompanionSettleInterval,
	}
}

// Integrate runs the companion stages against req.ConfigPath.
//
// The process gate runs first: a running ShareX that the user declines to
// close aborts before any file, backup included, is written. ShareX rewrites
// its config on exit, so editing it underneath a live instance would be
// silently undone.
func (c *CompanionIntegrator) Integrate(ctx context.Context, req CompanionRequest) (*CompanionResult, error) {
	res := &CompanionResult{ConfigPath: req.ConfigPath}

	terminated, err := c.gate(ctx)
	if err != nil {
		return nil, err
	}
	res.TerminatedShareX = terminated

	original, err := os.ReadFile(req.ConfigPath)
	if err != nil {
		return nil, newError(ConfigIOError, "read", err)
	}

	script, err := RenderCompanionScript(req.Instance, req.BinaryPath)
	if err != nil {
		return nil, err
	}
	scriptPath := filepath.Join(filepath.Dir(req.ConfigPath), CompanionScriptName)

	updated, mres, err := MutateConfig(original, NewCompanionAction(scriptPath))
	if err != nil {
		return nil, err
	}
	res.Mutation = mres

	// The script is written only once the config is known to be editable,
	// and before the config starts pointing at it.
	if err := c.writeScript(scriptPath, script); err != nil {
		return nil, err
	}
	res.ScriptPath = scriptPath

	if mres.Changed() {
		backup, err := CreateBackup(req.ConfigPath, c.now())
		if err != nil {
			return nil, err
		}
		res.Backup = backup
		stepf(c.report, "Backed up ShareX config to %s", backup.BackupPath)

		if err := WriteCompanionConfig(req.ConfigPath, updated); err != nil {
			return nil, err
		}
		c.report.Success(fmt.Sprintf("Registered %q in ShareX", CompanionActionName))
	} else {
		stepf(c.report, "ShareX already configured")
	}
	c.log.Debug().
		Bool("added", mres.ActionAdded).
		Bool("updated", mres.ActionUpdated).
		Int("duplicates_removed", mres.DuplicatesRemoved).
		Bool("task_enabled", mres.TaskEnabled).
		Msg("sharex config")

	if err := c.verify(ctx, req, updated, res); err != nil {
		return nil, err
	}
	return res, nil
}

// gate refuses to continue while ShareX is running unless the user agrees
// to close it. It is not retried.
func (c *CompanionIntegrator) gate(ctx context.Context) (bool, error) {
	pids, err := c.procs.Running(ctx, CompanionProcessName)
	if err != nil {
		return false, newError(EnvironmentError, "sharex", err)
	}
	if len(pids) == 0 {
		return false, nil
	}
	c.log.Debug().Interface("pids", pids).Msg("sharex running")

	ok, err := c.prompt.Confirm("ShareX is running and must be closed to update its settings. Close it now?", false)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, newError(CompanionStateError, "sharex", ErrCompanionRunning)
	}
	if err := c.procs.Terminate(ctx, pids); err != nil {
		return false, newError(CompanionStateError, "sharex", fmt.Errorf("%w: %v", ErrCompanionRunning, err))
	}
	stepf(c.report, "Closed ShareX, waiting %s for it to exit", c.settle)
	if err := sleepContext(ctx, c.settle); err != nil {
		return false, err
	}
	return true, nil
}

func (c *CompanionIntegrator) writeScript(p string, script []byte) error {
	if existing, err := os.ReadFile(p); err == nil && bytes.Equal(existing, script) {
		return nil
	}
	if err := os.WriteFile(p, script, 0o755); err != nil {
		return newError(ConfigIOError, "companion", fmt.Errorf("writing %s: %w", p, err))
	}
	c.log.Debug().Str("path", p).Msg("wrote companion script")
	return nil
}

// verify makes the ShareX folders readable by the bridge: they are
// translated into guest paths and merged, with /tmp, into
// allowed_directories.
func (c *CompanionIntegrator) verify(ctx context.Context, req CompanionRequest, config []byte, res *CompanionResult) error {
	if c.appConf == nil || req.AppConfigPath == "" {
		return nil
	}
	dirs := []string{"/tmp"}
	for _, d := range ScreenshotDirs(config, req.ConfigPath) {
		g, err := c.runner.ToGuestPath(ctx, req.Instance, d)
		if err != nil {
			warnf(c.report, "Could not translate %s for WSL; add it to allowed_directories manually", d)
			c.log.Debug().Err(err).Str("dir", d).Msg("wslpath failed")
			continue
		}
		dirs = append(dirs, g)
	}
	changed, err := c.appConf.AllowDirectories(ctx, req.Instance, req.AppConfigPath, dirs)
	if err != nil {
		return err
	}
	res.AllowedDirs = dirs
	res.AllowedChanged = changed
	if changed {
		stepf(c.report, "Allowed the bridge to read %s", strings.Join(dirs, ", "))
	}
	return nil
}
