package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

var fakeBinary = []byte("#!/bin/sh\necho fake xclip\n")

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// releaseServer serves /dl/xclip-amd64 and /dl/xclip-arm64. Checksum
// sidecars answer with sidecarStatus and, for 200, the sidecar body.
func releaseServer(t *testing.T, sidecar string, sidecarStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		switch name := strings.TrimPrefix(r.URL.Path, "/dl/"); {
		case strings.HasSuffix(name, ChecksumSuffix):
			if sidecarStatus != http.StatusOK {
				w.WriteHeader(sidecarStatus)
				return
			}
			_, _ = w.Write([]byte(sidecar))
		case name == "xclip-amd64" || name == "xclip-arm64":
			_, _ = w.Write(fakeBinary)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestInstaller(r *localRunner, srv *httptest.Server, rep Reporter) *ArtifactInstaller {
	return NewArtifactInstaller(r, srv.Client(), zerolog.Nop(), rep)
}

func TestReleaseURL(t *testing.T) {
	tests := []struct {
		base    string
		arch    Arch
		want    string
		wantErr bool
	}{
		{"https://example.com/releases/latest/download", ArchAMD64, "https://example.com/releases/latest/download/xclip-amd64", false},
		{"https://example.com/dl/", ArchARM64, "https://example.com/dl/xclip-arm64", false},
		{"", ArchAMD64, DefaultReleaseBase + "/xclip-amd64", false},
		{"http://example.com/dl", ArchAMD64, "", true},
		{"https://example.com/dl", "", "", true},
	}
	for _, tt := range tests {
		got, err := ReleaseURL(tt.base, tt.arch)
		if (err != nil) != tt.wantErr {
			t.Errorf("ReleaseURL(%q, %q) error = %v, wantErr %v", tt.base, tt.arch, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ReleaseURL(%q, %q) = %q, want %q", tt.base, tt.arch, got, tt.want)
		}
	}
}

func TestParseChecksum(t *testing.T) {
	digest := sha256Hex(fakeBinary)
	upper := strings.ToUpper(digest)
	other := sha256Hex([]byte("other"))

	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{"bare", digest + "\n", digest, false},
		{"uppercase", upper, digest, false},
		{"sha256sum", digest + "  xclip-amd64\n", digest, false},
		{"binary mode", digest + " *xclip-amd64\n", digest, false},
		{"renamed single entry", digest + "  build/xclip\n", digest, false},
		{"multi entry", other + "  xclip-arm64\n" + digest + "  xclip-amd64\n", digest, false},
		{"multi entry missing", other + "  a\n" + other + "  b\n", "", true},
		{"empty", "  \n", "", true},
		{"garbage", "not a checksum", "", true},
		{"short digest", "abcd  xclip-amd64", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChecksum([]byte(tt.data), "xclip-amd64")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInstallVerified(t *testing.T) {
	srv := releaseServer(t, sha256Hex(fakeBinary)+"  xclip-amd64\n", http.StatusOK)
	r := newLocalRunner(t)
	inst := newTestInstaller(r, srv, nil)

	res, err := inst.Install(context.Background(), InstallRequest{
		Instance:    "Ubuntu",
		Arch:        ArchAMD64,
		Target:      TargetFor(ScopeUser),
		ReleaseBase: srv.URL + "/dl",
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !res.Artifact.Verified() {
		t.Error("expected artifact to be verified")
	}
	want := filepath.Join(r.home, ".local", "bin", "xclip")
	if res.InstalledPath != want {
		t.Errorf("InstalledPath = %q, want %q", res.InstalledPath, want)
	}
	info, err := os.Stat(want)
	if err != nil {
		t.Fatalf("installed binary missing: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("installed binary not executable: %v", info.Mode())
	}
	if _, err := os.Stat(want + stagedSuffix); !os.IsNotExist(err) {
		t.Error("staged binary left behind")
	}
	if _, err := os.Stat(res.Artifact.LocalTempPath); !os.IsNotExist(err) {
		t.Error("temp download not removed")
	}
}

func TestInstallWithoutSidecarWarns(t *testing.T) {
	srv := releaseServer(t, "", http.StatusNotFound)
	r := newLocalRunner(t)
	rep := &RecordingReporter{}
	inst := newTestInstaller(r, srv, rep)

	res, err := inst.Install(context.Background(), InstallRequest{
		Instance: "Ubuntu", Arch: ArchAMD64, Target: TargetFor(ScopeUser), ReleaseBase: srv.URL + "/dl",
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if res.Artifact.Verified() {
		t.Error("artifact without sidecar must not be reported as verified")
	}
	warnings := rep.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "integrity not verified") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestInstallChecksumMismatch(t *testing.T) {
	srv := releaseServer(t, sha256Hex([]byte("tampered")), http.StatusOK)
	r := newLocalRunner(t)
	inst := newTestInstaller(r, srv, nil)

	_, err := inst.Install(context.Background(), InstallRequest{
		Instance: "Ubuntu", Arch: ArchAMD64, Target: TargetFor(ScopeUser), ReleaseBase: srv.URL + "/dl",
	})
	e, ok := AsError(err)
	if !ok || e.Kind != IntegrityError {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("guest commands ran before verification: %v", r.calls)
	}
}

func TestInstallSidecarServerError(t *testing.T) {
	srv := releaseServer(t, "", http.StatusInternalServerError)
	r := newLocalRunner(t)
	inst := newTestInstaller(r, srv, nil)

	_, err := inst.Install(context.Background(), InstallRequest{
		Instance: "Ubuntu", Arch: ArchAMD64, Target: TargetFor(ScopeUser), ReleaseBase: srv.URL + "/dl",
	})
	if e, ok := AsError(err); !ok || e.Kind != DownloadError {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("guest commands ran: %v", r.calls)
	}
}

func TestInstallMissingAsset(t *testing.T) {
	srv := releaseServer(t, "", http.StatusNotFound)
	r := newLocalRunner(t)
	inst := newTestInstaller(r, srv, nil)

	_, err := inst.Install(context.Background(), InstallRequest{
		Instance: "Ubuntu", Arch: ArchARM64, Target: TargetFor(ScopeUser), ReleaseBase: srv.URL + "/missing",
	})
	if e, ok := AsError(err); !ok || e.Kind != DownloadError {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("guest commands ran: %v", r.calls)
	}
}

func TestInstallElevatedRunsAsRoot(t *testing.T) {
	srv := releaseServer(t, "", http.StatusNotFound)
	r := newLocalRunner(t)
	inst := newTestInstaller(r, srv, nil)

	target := TargetFor(ScopeSystem)
	target.BasePath = filepath.Join(t.TempDir(), "bin")

	if _, err := inst.Install(context.Background(), InstallRequest{
		Instance: "Ubuntu", Arch: ArchAMD64, Target: target, ReleaseBase: srv.URL + "/dl",
	}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	for i, u := range r.users {
		if u != "root" {
			t.Errorf("call %d %v ran as %q, want root", i, r.calls[i], u)
		}
	}
	if r.ran("printenv") {
		t.Error("absolute base path should not consult guest $HOME")
	}
}

func TestInstallPermissionDenied(t *testing.T) {
	srv := releaseServer(t, "", http.StatusNotFound)
	r := newLocalRunner(t)
	r.failOn["mkdir"] = "mkdir: cannot create directory '/usr/local/bin': Permission denied"
	inst := newTestInstaller(r, srv, nil)

	_, err := inst.Install(context.Background(), InstallRequest{
		Instance: "Ubuntu", Arch: ArchAMD64, Target: TargetFor(ScopeSystem), ReleaseBase: srv.URL + "/dl",
	})
	if e, ok := AsError(err); !ok || e.Kind != PermissionError {
		t.Fatalf("expected PermissionError, got %v", err)
	}
}

func TestInstallFailedMoveRemovesStaged(t *testing.T) {
	srv := releaseServer(t, "", http.StatusNotFound)
	r := newLocalRunner(t)
	r.failOn["mv"] = "mv: cannot move: Device or resource busy"
	inst := newTestInstaller(r, srv, nil)

	_, err := inst.Install(context.Background(), InstallRequest{
		Instance: "Ubuntu", Arch: ArchAMD64, Target: TargetFor(ScopeUser), ReleaseBase: srv.URL + "/dl",
	})
	if e, ok := AsError(err); !ok || e.Kind != EnvironmentError {
		t.Fatalf("expected EnvironmentError, got %v", err)
	}
	dest := filepath.Join(r.home, ".local", "bin", "xclip")
	if _, err := os.Stat(dest + stagedSuffix); !os.IsNotExist(err) {
		t.Error("staged binary not cleaned up")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination must be untouched when the move fails")
	}
}

func TestInstallTwiceIsIdempotent(t *testing.T) {
	srv := releaseServer(t, sha256Hex(fakeBinary), http.StatusOK)
	r := newLocalRunner(t)
	inst := newTestInstaller(r, srv, nil)
	req := InstallRequest{Instance: "Ubuntu", Arch: ArchAMD64, Target: TargetFor(ScopeUser), ReleaseBase: srv.URL + "/dl"}

	for i := 0; i < 2; i++ {
		if _, err := inst.Install(context.Background(), req); err != nil {
			t.Fatalf("Install #%d: %v", i+1, err)
		}
	}
	dir := filepath.Join(r.home, ".local", "bin")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "xclip" {
		t.Errorf("unexpected bin dir contents: %v", entries)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "xclip"))
	if string(got) != string(fakeBinary) {
		t.Errorf("installed content = %q", got)
	}
}

func TestInstallRejectsInvalidInstance(t *testing.T) {
	srv := releaseServer(t, "", http.StatusNotFound)
	r := newLocalRunner(t)
	inst := newTestInstaller(r, srv, nil)

	_, err := inst.Install(context.Background(), InstallRequest{
		Instance: "Ubuntu; rm -rf /", Arch: ArchAMD64, Target: TargetFor(ScopeUser), ReleaseBase: srv.URL + "/dl",
	})
	if e, ok := AsError(err); !ok || e.Kind != ValidationError {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
