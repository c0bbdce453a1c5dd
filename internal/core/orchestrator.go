package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/barysiuk/clipbridge/internal/core/guest"
)

// Options configures one installer run. Zero values mean "decide": ask
// when interactive, otherwise use the documented default.
type Options struct {
	Instance        string
	Scope           Scope
	Settings        SettingsOverrides
	SkipCompanion   bool
	CompanionConfig string // explicit ApplicationConfig.json path
	ReleaseBase     string
	Interactive     bool
}

// Deps are the collaborators an Orchestrator runs with.
type Deps struct {
	Runner     guest.Runner
	Prompter   Prompter
	Reporter   Reporter
	Log        zerolog.Logger
	Config     *ConfigManager // nil disables preferences
	HTTPClient *http.Client
	Processes  ProcessChecker
}

// Summary is the explicit result of a successful run.
type Summary struct {
	Instance         GuestInstance
	Scope            Scope
	InstalledPath    string
	ChecksumVerified bool
	Path             *PathResult // nil for system scope
	Settings         AppSettings
	ConfigPath       string
	Companion        *CompanionResult // nil when skipped
	Warnings         []string
}

// Orchestrator sequences the installation stages. Every stage fails fast;
// nothing is retried.
type Orchestrator struct {
	deps      Deps
	report    *RecordingReporter
	out       Reporter
	prober    *Prober
	installer *ArtifactInstaller
	patcher   *ProfilePatcher
	appConf   *AppConfigWriter
	companion *CompanionIntegrator
}

// NewOrchestrator wires the stage components around d.
func NewOrchestrator(d Deps) *Orchestrator {
	if d.Prompter == nil {
		d.Prompter = AutoPrompter{}
	}
	if d.Reporter == nil {
		d.Reporter = NopReporter{}
	}
	rec := &RecordingReporter{}
	out := TeeReporter(d.Reporter, rec)
	appConf := NewAppConfigWriter(d.Runner, d.Log, out)
	return &Orchestrator{
		deps:      d,
		report:    rec,
		out:       out,
		prober:    NewProber(d.Runner, d.Log),
		installer: NewArtifactInstaller(d.Runner, d.HTTPClient, d.Log, out),
		patcher:   NewProfilePatcher(d.Runner, d.Log, out),
		appConf:   appConf,
		companion: NewCompanionIntegrator(d.Runner, d.Processes, d.Prompter, appConf, d.Log, out),
	}
}

// Run performs the installation. Nothing inside the guest or in ShareX is
// changed before the final confirmation.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	prefs := o.loadPreferences()
	p := o.deps.Prompter

	// Probe and select.
	env, err := o.prober.Probe(ctx)
	if err != nil {
		return nil, err
	}
	name, err := SelectInstance(SelectRequest{
		Explicit:    opts.Instance,
		Candidates:  env.Instances,
		LastUsed:    prefs.LastInstance,
		Interactive: opts.Interactive,
	}, p)
	if err != nil {
		return nil, err
	}
	arch, err := o.resolveArch(ctx, env, name)
	if err != nil {
		return nil, err
	}
	inst := GuestInstance{Name: name, Arch: arch}

	// Decide.
	scope, err := DecideScope(p, opts.Scope, prefs.InstallScope)
	if err != nil {
		return nil, err
	}
	var settings AppSettings
	if opts.Interactive {
		settings, err = AskSettings(p, DefaultSettings(), opts.Settings)
	} else {
		settings, err = DecideSettings(DefaultSettings(), opts.Settings)
	}
	if err != nil {
		return nil, err
	}
	base := opts.ReleaseBase
	if base == "" {
		base = prefs.ReleaseBaseURL
	}

	var companionPath string
	if !opts.SkipCompanion {
		if companionPath, err = o.locateCompanion(opts, prefs); err != nil {
			return nil, err
		}
	}

	// Confirm.
	target := TargetFor(scope)
	stepf(o.out, "Distribution: %s (%s)", inst.Name, inst.Arch)
	stepf(o.out, "Install to:   %s", target.BasePath)
	stepf(o.out, "Settings:     ttl %ds, max dimension %dpx, home only %t", settings.TTLSeconds, settings.MaxImageDimension, settings.RestrictToHome)
	if companionPath != "" {
		stepf(o.out, "ShareX:       %s", companionPath)
	}
	ok, err := p.Confirm("Proceed with installation?", true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAborted
	}

	// Mutate.
	sum := &Summary{Instance: inst, Scope: scope, Settings: settings}
	res, err := o.installer.Install(ctx, InstallRequest{
		Instance:    inst.Name,
		Arch:        inst.Arch,
		Target:      target,
		ReleaseBase: base,
	})
	if err != nil {
		return nil, err
	}
	sum.InstalledPath = res.InstalledPath
	sum.ChecksumVerified = res.Artifact.Verified()

	if scope == ScopeUser {
		if sum.Path, err = o.patcher.EnsurePath(ctx, inst.Name, res.BinDir); err != nil {
			return nil, err
		}
	}

	if sum.ConfigPath, err = o.appConf.WriteConfig(ctx, inst.Name, settings); err != nil {
		return nil, err
	}

	if companionPath != "" {
		sum.Companion, err = o.companion.Integrate(ctx, CompanionRequest{
			Instance:      inst.Name,
			BinaryPath:    res.InstalledPath,
			ConfigPath:    companionPath,
			AppConfigPath: sum.ConfigPath,
		})
		if err != nil {
			return nil, err
		}
	}

	o.savePreferences(func(pr *Preferences) {
		pr.LastInstance = inst.Name
		pr.InstallScope = scope
		if opts.ReleaseBase != "" {
			pr.ReleaseBaseURL = opts.ReleaseBase
		}
		if companionPath != "" {
			pr.ShareXConfigPath = companionPath
		}
	})
	sum.Warnings = o.report.Warnings()
	return sum, nil
}

// resolveArch prefers the guest's own `uname -m`. If the guest cannot be
// asked, the host architecture is used with a warning.
func (o *Orchestrator) resolveArch(ctx context.Context, env *Environment, name string) (Arch, error) {
	garch, err := o.prober.GuestArch(ctx, name)
	if err != nil {
		if errors.Is(err, ErrUnsupportedArch) || errors.Is(err, ErrInvalidIdentifier) {
			return "", err
		}
		warnf(o.out, "Could not detect the architecture of %s; assuming %s", name, env.HostArch)
		o.deps.Log.Debug().Err(err).Msg("guest arch detection failed")
	}
	arch, err := ResolveArch(env.HostArch, garch)
	if err != nil {
		return "", err
	}
	if garch != "" && env.HostArch != "" && garch != env.HostArch {
		o.deps.Log.Warn().Str("host", string(env.HostArch)).Str("guest", string(garch)).Msg("host and guest architectures differ, using guest")
	}
	return arch, nil
}

// locateCompanion finds ApplicationConfig.json. An explicit path must exist.
// Otherwise the remembered and default paths are tried, then the user is
// asked when interactive.
func (o *Orchestrator) locateCompanion(opts Options, prefs *Preferences) (string, error) {
	if opts.CompanionConfig != "" {
		return LocateCompanionConfig(opts.CompanionConfig)
	}
	path, err := LocateCompanionConfig(prefs.ShareXConfigPath, DefaultCompanionConfigPath())
	if err == nil || !opts.Interactive {
		return path, err
	}

	custom, perr := o.deps.Prompter.Input("ShareX config not found. Path to ApplicationConfig.json", "", func(s string) error {
		if s == "" {
			return nil
		}
		if info, err := os.Stat(s); err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("no such file")
		}
		return nil
	})
	if perr != nil {
		return "", perr
	}
	if custom == "" {
		return "", err
	}
	return LocateCompanionConfig(custom)
}

func (o *Orchestrator) loadPreferences() *Preferences {
	if o.deps.Config == nil {
		return &Preferences{}
	}
	prefs, err := o.deps.Config.Load()
	if err != nil {
		o.deps.Log.Warn().Err(err).Msg("ignoring unreadable preferences")
		return &Preferences{}
	}
	return prefs
}

func (o *Orchestrator) savePreferences(fn func(*Preferences)) {
	if o.deps.Config == nil {
		return
	}
	if err := o.deps.Config.Update(fn); err != nil {
		o.deps.Log.Warn().Err(err).Msg("could not save preferences")
	}
}
