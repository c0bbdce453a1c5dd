package core

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/barysiuk/clipbridge/internal/core/guest"
)

const (
	// DefaultReleaseBase is where release assets are downloaded from unless
	// overridden with --release-base or the preferences file.
	DefaultReleaseBase = "https://github.com/wsl-clip-bridge/wsl-clip-bridge/releases/latest/download"

	// BinaryName is the installed file name. The bridge is a drop-in xclip.
	BinaryName = "xclip"

	// ChecksumSuffix is appended to the asset URL to find its sidecar.
	ChecksumSuffix = ".sha256"

	downloadTimeout  = 5 * time.Minute
	maxChecksumBytes = 64 << 10
	stagedSuffix     = ".partial"
)

// AssetName returns the release asset name for arch.
func AssetName(arch Arch) string {
	return BinaryName + "-" + string(arch)
}

// ReleaseURL joins base and the asset name for arch. Only https bases are
// accepted.
func ReleaseURL(base string, arch Arch) (string, error) {
	if base == "" {
		base = DefaultReleaseBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", newError(ValidationError, "download", fmt.Errorf("release base %q: %w", base, err))
	}
	if u.Scheme != "https" || u.Host == "" {
		return "", newError(ValidationError, "download", fmt.Errorf("release base %q must be an https URL", base))
	}
	if arch == "" {
		return "", newError(EnvironmentError, "download", ErrUnsupportedArch)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + AssetName(arch)
	return u.String(), nil
}

// NewHTTPClient returns the client used for release downloads. TLS 1.2 is
// the minimum; proxies come from the environment.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: downloadTimeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

// InstallRequest configures one artifact installation.
type InstallRequest struct {
	Instance    string
	Arch        Arch
	Target      InstallTarget
	ReleaseBase string // empty means DefaultReleaseBase
}

// InstallResult describes what was installed.
type InstallResult struct {
	Artifact      ReleaseArtifact
	BinDir        string // resolved guest directory
	InstalledPath string // guest path of the binary
}

// ArtifactInstaller downloads the bridge binary, verifies it and places it
// inside a guest instance.
type ArtifactInstaller struct {
	runner guest.Runner
	client *http.Client
	log    zerolog.Logger
	report Reporter
}

// NewArtifactInstaller creates an ArtifactInstaller. A nil client uses
// NewHTTPClient and a nil reporter discards progress.
func NewArtifactInstaller(runner guest.Runner, client *http.Client, log zerolog.Logger, report Reporter) *ArtifactInstaller {
	if client == nil {
		client = NewHTTPClient()
	}
	if report == nil {
		report = NopReporter{}
	}
	return &ArtifactInstaller{runner: runner, client: client, log: log, report: report}
}

// Install downloads, verifies and installs the binary. Nothing is done
// inside the guest until the checksum has been checked. The temporary
// download directory is removed on every path.
func (a *ArtifactInstaller) Install(ctx context.Context, req InstallRequest) (*InstallResult, error) {
	if err := guest.ValidateName(req.Instance); err != nil {
		return nil, newError(ValidationError, "install", fmt.Errorf("%w: %v", ErrInvalidIdentifier, err))
	}
	assetURL, err := ReleaseURL(req.ReleaseBase, req.Arch)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "clipbridge-*")
	if err != nil {
		return nil, newError(EnvironmentError, "download", fmt.Errorf("creating temp dir: %w", err))
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	artifact, err := a.fetch(ctx, assetURL, filepath.Join(tmpDir, AssetName(req.Arch)))
	if err != nil {
		return nil, err
	}

	binDir, dest, err := a.place(ctx, req, artifact.LocalTempPath)
	if err != nil {
		return nil, err
	}
	return &InstallResult{Artifact: *artifact, BinDir: binDir, InstalledPath: dest}, nil
}

// fetch downloads assetURL to localPath and verifies it against the
// published sidecar, if any.
func (a *ArtifactInstaller) fetch(ctx context.Context, assetURL, localPath string) (*ReleaseArtifact, error) {
	stepf(a.report, "Downloading %s", assetURL)
	if err := a.download(ctx, assetURL, localPath); err != nil {
		return nil, newError(DownloadError, "download", err)
	}

	artifact := &ReleaseArtifact{URL: assetURL, LocalTempPath: localPath}
	actual, err := FileSHA256(localPath)
	if err != nil {
		return nil, newError(EnvironmentError, "verify", err)
	}
	artifact.ActualChecksum = actual

	sidecar, status, err := a.get(ctx, assetURL+ChecksumSuffix)
	switch {
	case err != nil:
		return nil, newError(DownloadError, "verify", fmt.Errorf("fetching checksum: %w", err))
	case status == http.StatusNotFound:
		warnf(a.report, "No checksum published for %s; integrity not verified", path.Base(assetURL))
		a.log.Debug().Str("url", assetURL+ChecksumSuffix).Msg("checksum sidecar absent")
		return artifact, nil
	case status != http.StatusOK:
		return nil, newError(DownloadError, "verify", fmt.Errorf("fetching checksum: %s returned HTTP %d", assetURL+ChecksumSuffix, status))
	}

	expected, err := ParseChecksum(sidecar, path.Base(assetURL))
	if err != nil {
		return nil, newError(IntegrityError, "verify", err)
	}
	artifact.ExpectedChecksum = expected
	if !artifact.Verified() {
		return nil, newError(IntegrityError, "verify",
			fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual))
	}
	a.log.Debug().Str("sha256", actual).Msg("checksum verified")
	a.report.Success("Checksum verified")
	return artifact, nil
}

func (a *ArtifactInstaller) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", rawURL, resp.StatusCode)
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if n == 0 {
		return fmt.Errorf("GET %s: empty response", rawURL)
	}
	a.log.Debug().Int64("bytes", n).Str("path", dest).Msg("downloaded")
	return nil
}

// get fetches a small document. The status is returned alongside a nil
// error for any completed HTTP exchange.
func (a *ArtifactInstaller) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxChecksumBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// place copies the verified binary into the guest. The binary is staged
// next to its destination and renamed into place last, so an interrupted
// run never leaves a truncated executable at the destination.
func (a *ArtifactInstaller) place(ctx context.Context, req InstallRequest, localPath string) (string, string, error) {
	src, err := a.runner.ToGuestPath(ctx, req.Instance, localPath)
	if err != nil {
		return "", "", classifyGuestError("install", err)
	}

	binDir, err := ResolveGuestHome(ctx, a.runner, req.Instance, req.Target.BasePath)
	if err != nil {
		return "", "", err
	}
	dest := path.Join(binDir, BinaryName)
	staged := dest + stagedSuffix
	t := req.Target

	stepf(a.report, "Installing %s into %s", BinaryName, binDir)
	if _, err := a.run(ctx, req.Instance, t, t.DirInitVerb, binDir); err != nil {
		return "", "", err
	}
	if _, err := a.run(ctx, req.Instance, t, t.CopyVerb, src, staged); err != nil {
		return "", "", err
	}
	if _, err := a.run(ctx, req.Instance, t, t.ChmodVerb, staged); err != nil {
		a.discard(ctx, req.Instance, t, staged)
		return "", "", err
	}
	if _, err := a.run(ctx, req.Instance, t, t.MoveVerb, staged, dest); err != nil {
		a.discard(ctx, req.Instance, t, staged)
		return "", "", err
	}
	a.report.Success(fmt.Sprintf("Installed %s", dest))
	return binDir, dest, nil
}

func (a *ArtifactInstaller) run(ctx context.Context, instance string, t InstallTarget, verb []string, args ...string) ([]byte, error) {
	argv := append(append([]string(nil), verb...), args...)
	a.log.Debug().Strs("argv", argv).Str("user", t.RunAs()).Msg("guest command")
	out, err := a.runner.RunAs(ctx, instance, t.RunAs(), argv...)
	if err != nil {
		return out, classifyGuestError("install", err)
	}
	return out, nil
}

func (a *ArtifactInstaller) discard(ctx context.Context, instance string, t InstallTarget, staged string) {
	if _, err := a.run(ctx, instance, t, t.RemoveVerb, staged); err != nil {
		a.log.Debug().Err(err).Str("path", staged).Msg("removing staged binary failed")
	}
}

// ResolveGuestHome expands a leading "~/" in p against the default user's
// $HOME inside the instance. Other paths are returned unchanged.
func ResolveGuestHome(ctx context.Context, runner guest.Runner, instance, p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := GuestEnv(ctx, runner, instance, "HOME")
	if err != nil {
		return "", err
	}
	if home == "" || !strings.HasPrefix(home, "/") {
		return "", newError(EnvironmentError, "install", fmt.Errorf("guest $HOME is not set in %s", instance))
	}
	return path.Join(home, strings.TrimPrefix(p, "~")), nil
}

// GuestEnv reads one environment variable of the default guest user. An
// unset variable yields "".
func GuestEnv(ctx context.Context, runner guest.Runner, instance, name string) (string, error) {
	out, err := runner.Run(ctx, instance, "printenv", name)
	if err != nil {
		var ce *guest.CommandError
		// printenv exits 1 for unset variables without printing anything.
		if errors.As(err, &ce) && strings.TrimSpace(ce.Output) == "" {
			return "", nil
		}
		return "", classifyGuestError("install", err)
	}
	return strings.TrimSpace(string(out)), nil
}

var permissionMarkers = []string{
	"permission denied",
	"operation not permitted",
	"a password is required",
	"password for",
	"read-only file system",
}

// classifyGuestError maps a runner failure onto the error taxonomy.
func classifyGuestError(op string, err error) error {
	if errors.Is(err, guest.ErrInvalidName) {
		return newError(ValidationError, op, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err))
	}
	if errors.Is(err, guest.ErrUnavailable) {
		return newError(EnvironmentError, op, fmt.Errorf("%w: %v", ErrVirtualizationUnavailable, err))
	}
	var ce *guest.CommandError
	if errors.As(err, &ce) {
		lower := strings.ToLower(ce.Output)
		for _, m := range permissionMarkers {
			if strings.Contains(lower, m) {
				return newError(PermissionError, op, err)
			}
		}
	}
	return newError(EnvironmentError, op, err)
}
