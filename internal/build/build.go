package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goplus/keabuild/internal/config"
	"github.com/goplus/keabuild/internal/env"
	"github.com/goplus/keabuild/internal/platform"
	"github.com/goplus/keabuild/pkgs/buildsys/cmake"
	"github.com/qiniu/x/log"
)

const releaseConfig = "Release"

var (
	// ErrUnsupportedPlatform is returned before anything runs when the host
	// has no known way to configure the project.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrCMakeTooOld is returned when cmake is older than the project minimum.
	ErrCMakeTooOld = errors.New("cmake is too old")
	// ErrUnsafeBuildDir is returned when the build directory holds the
	// project root or its sources.
	ErrUnsafeBuildDir = errors.New("unsafe build directory")
)

// Config describes one build invocation. Paths are absolute.
type Config struct {
	Root      string
	SourceDir string
	BuildDir  string
	VcpkgRoot string

	Clean   bool
	Release bool
	Install bool
	Prefix  string

	Generator    string
	CMake        string
	CMakeMinimum string
	Defines      map[string]string
	Options      map[string]bool

	Platform platform.Platform
}

// NewConfig resolves the project settings against root.
func NewConfig(root string, proj config.Project, p platform.Platform) Config {
	return Config{
		Root:         root,
		SourceDir:    env.Resolve(root, proj.SourceDir),
		BuildDir:     env.Resolve(root, proj.BuildDir),
		VcpkgRoot:    env.Resolve(root, proj.VcpkgRoot),
		Generator:    proj.Generator,
		CMake:        proj.CMake,
		CMakeMinimum: proj.CMakeMinimum,
		Defines:      proj.Defines,
		Options:      proj.Options,
		Platform:     p,
	}
}

// ToolchainFile returns the vcpkg CMake toolchain file.
func (c Config) ToolchainFile() string {
	return filepath.Join(c.VcpkgRoot, "scripts", "buildsystems", "vcpkg.cmake")
}

// ValidateDirs checks that cleaning the build directory cannot remove the
// project root or the sources: the build directory must not be, or
// contain, either of them.
func (c Config) ValidateDirs() error {
	if c.BuildDir == "" || c.SourceDir == "" {
		return fmt.Errorf("build: source and build directories are required")
	}
	for _, dir := range []string{c.Root, c.SourceDir} {
		if dir != "" && env.Within(dir, c.BuildDir) {
			return fmt.Errorf("%w: %s contains %s", ErrUnsafeBuildDir, c.BuildDir, dir)
		}
	}
	return nil
}

// Plan holds the cmake argument lists of one run. Install is nil unless
// an install was requested.
type Plan struct {
	Configure []string
	Build     []string
	Install   []string
}

// Result describes a finished run.
type Result struct {
	BuildDir  string
	OutputDir string
}

// VersionProbe reports the version of the cmake executable bin.
type VersionProbe func(ctx context.Context, bin string) (string, error)

// Option configures a Builder.
type Option func(*Builder)

// WithRunner sets the process runner used for cmake invocations.
func WithRunner(r cmake.Runner) Option {
	return func(b *Builder) {
		b.runner = r
	}
}

// WithVersionProbe sets how the cmake version is queried.
func WithVersionProbe(probe VersionProbe) Option {
	return func(b *Builder) {
		b.probe = probe
	}
}

// Builder configures and builds a CMake project.
type Builder struct {
	cfg    Config
	runner cmake.Runner
	probe  VersionProbe
}

// New returns a Builder for cfg.
func New(cfg Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:    cfg,
		runner: cmake.ExecRunner,
		probe:  cmake.Version,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the invocation settings.
func (b *Builder) Config() Config {
	return b.cfg
}

// Validate reports whether the build can proceed on this host.
func (b *Builder) Validate() error {
	switch b.cfg.Platform {
	case platform.POSIX, platform.Windows:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, b.cfg.Platform)
	}
	return b.cfg.ValidateDirs()
}

// Plan returns the argument lists of the configure, build and install
// steps without touching the filesystem.
func (b *Builder) Plan() (Plan, error) {
	c, err := b.cmake()
	if err != nil {
		return Plan{}, err
	}
	p := Plan{
		Configure: c.ConfigureArgs(),
		Build:     c.BuildArgs(),
	}
	if b.cfg.Install {
		p.Install = c.InstallArgs()
	}
	return p, nil
}

// Prepare removes the build directory first when a clean build was
// requested, then makes sure it exists.
func (b *Builder) Prepare() error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.cfg.Clean {
		log.Info("cleaning", b.cfg.BuildDir)
		if err := Clean(b.cfg.BuildDir); err != nil {
			return err
		}
	}
	return os.MkdirAll(b.cfg.BuildDir, 0o755)
}

// Run prepares the build directory, then configures, builds and
// optionally installs the project. Each step runs to completion before
// the next; the first failing step ends the run.
func (b *Builder) Run(ctx context.Context) (Result, error) {
	c, err := b.cmake()
	if err != nil {
		return Result{}, err
	}
	if err := b.checkVersion(ctx); err != nil {
		return Result{}, err
	}
	if err := b.Prepare(); err != nil {
		return Result{}, err
	}

	log.Infof("configuring %s (%s)", b.cfg.SourceDir, b.cfg.Platform)
	if err := c.Configure(ctx); err != nil {
		return Result{}, fmt.Errorf("configure: %w", err)
	}
	log.Info("building", b.cfg.BuildDir)
	if err := c.Build(ctx); err != nil {
		return Result{}, fmt.Errorf("build: %w", err)
	}
	if b.cfg.Install {
		log.Info("installing", c.OutputDir())
		if err := c.Install(ctx); err != nil {
			return Result{}, fmt.Errorf("install: %w", err)
		}
	}
	return Result{BuildDir: b.cfg.BuildDir, OutputDir: c.OutputDir()}, nil
}

// DryRun writes the commands Run would execute to w.
func (b *Builder) DryRun(w io.Writer) error {
	c, err := b.cmake()
	if err != nil {
		return err
	}
	p, err := b.Plan()
	if err != nil {
		return err
	}
	if b.cfg.Clean {
		fmt.Fprintln(w, "rm -rf", b.cfg.BuildDir)
	}
	fmt.Fprintln(w, "mkdir -p", b.cfg.BuildDir)
	for _, args := range [][]string{p.Configure, p.Build, p.Install} {
		if args != nil {
			fmt.Fprintln(w, c.Command(args))
		}
	}
	return nil
}

// cmake returns the helper for this host. On POSIX a release build sets
// CMAKE_BUILD_TYPE at configure time; on Windows the multi-config
// generator picks the configuration at build time and vcpkg provides
// the toolchain.
func (b *Builder) cmake() (*cmake.CMake, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	c := cmake.New(b.cfg.SourceDir, b.cfg.BuildDir).
		Binary(b.cfg.CMake).
		Generator(b.cfg.Generator).
		WithRunner(b.runner)
	c.InstallDir(b.cfg.Prefix)
	for key, value := range b.cfg.Defines {
		c.Define(key, value)
	}
	for key, on := range b.cfg.Options {
		c.DefineBool(key, on)
	}

	switch b.cfg.Platform {
	case platform.POSIX:
		if b.cfg.Release {
			c.BuildType(releaseConfig)
		}
	case platform.Windows:
		c.Toolchain(b.cfg.ToolchainFile())
		if b.cfg.Release {
			c.Config(releaseConfig)
		}
	}
	return c, nil
}

func (b *Builder) checkVersion(ctx context.Context) error {
	if b.cfg.CMakeMinimum == "" {
		return nil
	}
	bin := b.cfg.CMake
	if bin == "" {
		bin = "cmake"
	}
	have, err := b.probe(ctx, bin)
	if err != nil {
		return err
	}
	log.Debugf("cmake %s, need %s", have, b.cfg.CMakeMinimum)
	if !cmake.AtLeast(have, b.cfg.CMakeMinimum) {
		return fmt.Errorf("%w: have %s, need %s", ErrCMakeTooOld, have, b.cfg.CMakeMinimum)
	}
	return nil
}

// Clean removes dir and everything below it. A missing dir is not an error.
func Clean(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean %s: %w", dir, err)
	}
	return nil
}
