package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/barysiuk/clipbridge/internal/core/guest"
)

// ProfileFiles are the shell startup files considered, relative to $HOME.
// Only files that already exist are patched.
var ProfileFiles = []string{".bashrc", ".zshrc", ".profile"}

// safeGuestPath is the grammar for guest paths written into generated shell
// or batch text.
var safeGuestPath = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)

// ValidateGuestPath checks that p is absolute and safe to embed in
// generated scripts.
func ValidateGuestPath(p string) error {
	if !strings.HasPrefix(p, "/") || !safeGuestPath.MatchString(p) {
		return newError(ValidationError, "path", fmt.Errorf("unsafe guest path %q", p))
	}
	return nil
}

// patchProfileScript runs with $1 = marker line, $2 = PATH block and the
// profile file names after that. It prints one "<state> <file>" line per file.
const patchProfileScript = `marker=$1; block=$2; shift 2
for f in "$@"; do
  p="$HOME/$f"
  if [ ! -f "$p" ]; then
    echo "missing $f"
  elif grep -qxF "$marker" "$p"; then
    echo "present $f"
  else
    printf '\n%s\n%s\n' "$marker" "$block" >> "$p" && echo "patched $f"
  fi
done`

// PathResult lists what EnsurePath did per profile file.
type PathResult struct {
	Dir     string
	Patched []string // block appended this run
	Present []string // block already there
}

// Changed reports whether any file was modified.
func (r *PathResult) Changed() bool { return len(r.Patched) > 0 }

// ProfilePatcher makes a guest directory part of PATH for login and
// interactive shells.
type ProfilePatcher struct {
	runner guest.Runner
	log    zerolog.Logger
	report Reporter
}

// NewProfilePatcher creates a ProfilePatcher.
func NewProfilePatcher(runner guest.Runner, log zerolog.Logger, report Reporter) *ProfilePatcher {
	if report == nil {
		report = NopReporter{}
	}
	return &ProfilePatcher{runner: runner, log: log, report: report}
}

// ProfileMarker is the comment line identifying the block for dir.
func ProfileMarker(dir string) string {
	return "# clipbridge: add " + dir + " to PATH"
}

// ProfileBlock is the PATH export appended after the marker. It is guarded
// so sourcing the file twice does not grow PATH.
func ProfileBlock(dir string) string {
	return fmt.Sprintf(`case ":$PATH:" in *":%s:"*) ;; *) export PATH="%s:$PATH" ;; esac`, dir, dir)
}

// EnsurePath appends the PATH block for dir to every existing profile file
// that does not have it yet. Running it again changes nothing.
func (p *ProfilePatcher) EnsurePath(ctx context.Context, instance, dir string) (*PathResult, error) {
	if err := ValidateGuestPath(dir); err != nil {
		return nil, err
	}
	args := append([]string{ProfileMarker(dir), ProfileBlock(dir)}, ProfileFiles...)
	out, err := p.runner.Shell(ctx, instance, patchProfileScript, args...)
	if err != nil {
		return nil, classifyGuestError("profile", err)
	}

	res := &PathResult{Dir: dir}
	for _, line := range strings.Split(string(out), "\n") {
		state, file, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		switch state {
		case "patched":
			res.Patched = append(res.Patched, file)
		case "present":
			res.Present = append(res.Present, file)
		}
	}
	p.log.Debug().Strs("patched", res.Patched).Strs("present", res.Present).Msg("shell profiles")

	switch {
	case res.Changed():
		p.report.Success(fmt.Sprintf("Added %s to PATH in %s", dir, strings.Join(res.Patched, ", ")))
	case len(res.Present) > 0:
		stepf(p.report, "%s already on PATH in %s", dir, strings.Join(res.Present, ", "))
	default:
		warnf(p.report, "No shell profile found (%s); add %s to PATH manually", strings.Join(ProfileFiles, ", "), dir)
	}
	return res, nil
}
