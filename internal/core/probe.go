package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/barysiuk/clipbridge/internal/core/guest"
)

// Environment is what the prober found on the host.
type Environment struct {
	Instances []string
	HostArch  Arch // empty if the host architecture is not supported
}

// Prober enumerates guest instances and detects CPU architectures.
// It is read-only.
type Prober struct {
	runner   guest.Runner
	log      zerolog.Logger
	hostArch func() (string, error)
}

// NewProber creates a Prober using runner for guest access.
func NewProber(runner guest.Runner, log zerolog.Logger) *Prober {
	return &Prober{runner: runner, log: log, hostArch: kernelArch}
}

func kernelArch() (string, error) {
	arch, err := host.KernelArch()
	if err != nil || arch == "" {
		return runtime.GOARCH, nil
	}
	return arch, nil
}

// Probe enumerates instances and the host architecture.
func (p *Prober) Probe(ctx context.Context) (*Environment, error) {
	names, err := p.runner.List(ctx)
	if err != nil {
		// Both a missing wsl.exe and a failing `--list` mean the
		// subsystem cannot be used.
		return nil, newError(EnvironmentError, "probe", fmt.Errorf("%w: %v", ErrVirtualizationUnavailable, err))
	}
	if len(names) == 0 {
		return nil, newError(DiscoveryError, "probe", ErrNoInstances)
	}

	env := &Environment{Instances: names}
	raw, _ := p.hostArch()
	if a, err := ParseArch(raw); err == nil {
		env.HostArch = a
	} else {
		p.log.Debug().Str("arch", raw).Msg("host architecture not supported by the bridge")
	}
	p.log.Debug().Strs("instances", names).Str("host_arch", string(env.HostArch)).Msg("probed environment")
	return env, nil
}

// GuestArch reads `uname -m` inside the instance.
func (p *Prober) GuestArch(ctx context.Context, instance string) (Arch, error) {
	out, err := p.runner.Run(ctx, instance, "uname", "-m")
	if err != nil {
		if errors.Is(err, guest.ErrInvalidName) {
			return "", newError(ValidationError, "probe", fmt.Errorf("%w: %v", ErrInvalidIdentifier, err))
		}
		return "", newError(EnvironmentError, "probe", fmt.Errorf("detecting architecture of %s: %w", instance, err))
	}
	a, err := ParseArch(strings.TrimSpace(string(out)))
	if err != nil {
		return "", newError(EnvironmentError, "probe", err)
	}
	return a, nil
}

// ResolveArch picks the architecture of the binary to install. The binary
// runs in the guest, so a known guest architecture always wins.
func ResolveArch(host, guest Arch) (Arch, error) {
	if guest != "" {
		return guest, nil
	}
	if host != "" {
		return host, nil
	}
	return "", newError(EnvironmentError, "probe", ErrUnsupportedArch)
}
