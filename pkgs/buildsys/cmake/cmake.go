// Package cmake wraps the cmake configure/build/install workflow.
package cmake

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/goplus/keabuild/pkgs/buildsys"
	"github.com/qiniu/x/log"
	"golang.org/x/sys/execabs"
)

// Runner executes name with args, blocking until the process exits.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// RunnerFunc adapts a plain function to Runner.
type RunnerFunc func(ctx context.Context, name string, args ...string) error

func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) error {
	return f(ctx, name, args...)
}

// InterruptGrace is how long a cancelled cmake gets to exit after the
// interrupt before it is killed.
var InterruptGrace = 10 * time.Second

// ExecRunner runs commands as child processes sharing the caller's
// standard streams.
var ExecRunner Runner = RunnerFunc(execRun)

type defineValue struct {
	value    string
	typeName string
}

// CMake drives CMake-based builds.
type CMake struct {
	bin        string
	sourceDir  string
	buildDir   string
	installDir string
	generator  string
	buildType  string
	config     string
	toolchain  string
	defines    map[string]defineValue
	runner     Runner
}

var _ buildsys.BuildSystem = (*CMake)(nil)

// New returns a ready-to-use CMake.
func New(sourceDir, buildDir string) *CMake {
	return &CMake{
		bin:       "cmake",
		sourceDir: sourceDir,
		buildDir:  buildDir,
		defines:   make(map[string]defineValue),
		runner:    ExecRunner,
	}
}

// Binary overrides the cmake executable.
func (c *CMake) Binary(name string) *CMake {
	if name != "" {
		c.bin = name
	}
	return c
}

// WithRunner replaces the process runner.
func (c *CMake) WithRunner(r Runner) *CMake {
	c.runner = r
	return c
}

// Source overrides the source directory.
func (c *CMake) Source(dir string) { c.sourceDir = dir }

// InstallDir sets the install prefix. Empty keeps the project default.
func (c *CMake) InstallDir(dir string) { c.installDir = dir }

// Generator sets the CMake generator (e.g. "Ninja", "Unix Makefiles").
func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

// BuildType sets CMAKE_BUILD_TYPE (e.g. "Release", "Debug") for
// single-config generators.
func (c *CMake) BuildType(name string) *CMake {
	c.buildType = name
	return c
}

// Config selects the configuration passed as --config to build and
// install, used by multi-config generators such as Visual Studio.
func (c *CMake) Config(name string) *CMake {
	c.config = name
	return c
}

// Toolchain sets CMAKE_TOOLCHAIN_FILE.
func (c *CMake) Toolchain(path string) *CMake {
	c.toolchain = path
	return c
}

// Define adds a -D<key>=<value> definition.
func (c *CMake) Define(key, value string) *CMake {
	c.defines[key] = defineValue{value: value}
	return c
}

// DefineBool adds a -D<key>:BOOL=ON/OFF definition.
func (c *CMake) DefineBool(key string, value bool) *CMake {
	v := "OFF"
	if value {
		v = "ON"
	}
	c.defines[key] = defineValue{value: v, typeName: "BOOL"}
	return c
}

// ConfigureArgs returns the arguments of "cmake -S <source> -B <build>".
func (c *CMake) ConfigureArgs(extra ...string) []string {
	args := []string{"-S", c.sourceDir, "-B", c.buildDir}
	if c.generator != "" {
		args = append(args, "-G", c.generator)
	}
	args = append(args, c.definesArgs()...)
	if c.installDir != "" {
		args = append(args, "-DCMAKE_INSTALL_PREFIX="+c.installDir)
	}
	if c.toolchain != "" {
		args = append(args, "-DCMAKE_TOOLCHAIN_FILE="+c.toolchain)
	}
	if c.buildType != "" {
		args = append(args, "-DCMAKE_BUILD_TYPE="+c.buildType)
	}
	return append(args, extra...)
}

// BuildArgs returns the arguments of "cmake --build <build>".
func (c *CMake) BuildArgs(extra ...string) []string {
	args := []string{"--build", c.buildDir}
	if c.config != "" {
		args = append(args, "--config", c.config)
	}
	return append(args, extra...)
}

// InstallArgs returns the arguments of "cmake --install <build>".
func (c *CMake) InstallArgs(extra ...string) []string {
	args := []string{"--install", c.buildDir}
	if c.config != "" {
		args = append(args, "--config", c.config)
	}
	if c.installDir != "" {
		args = append(args, "--prefix", c.installDir)
	}
	return append(args, extra...)
}

// Configure runs "cmake -S <source> -B <build>" with all configured options.
// Extra args are appended at the end. The build directory must exist.
func (c *CMake) Configure(ctx context.Context, args ...string) error {
	return c.run(ctx, c.ConfigureArgs(args...))
}

// Build runs "cmake --build <build>" with optional extra arguments.
func (c *CMake) Build(ctx context.Context, args ...string) error {
	return c.run(ctx, c.BuildArgs(args...))
}

// Install runs "cmake --install <build>" with optional extra arguments.
func (c *CMake) Install(ctx context.Context, args ...string) error {
	return c.run(ctx, c.InstallArgs(args...))
}

// OutputDir returns installDir if set, otherwise buildDir.
func (c *CMake) OutputDir() string {
	if c.installDir != "" {
		return c.installDir
	}
	return c.buildDir
}

// Command renders the invocation for display.
func (c *CMake) Command(args []string) string {
	return c.bin + " " + strings.Join(args, " ")
}

func (c *CMake) run(ctx context.Context, args []string) error {
	log.Debug("run:", c.Command(args))
	return c.runner.Run(ctx, c.bin, args...)
}

func (c *CMake) definesArgs() []string {
	if len(c.defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.defines))
	for k := range c.defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		d := c.defines[k]
		if d.typeName != "" {
			args = append(args, "-D"+k+":"+d.typeName+"="+d.value)
			continue
		}
		args = append(args, "-D"+k+"="+d.value)
	}
	return args
}

func execRun(ctx context.Context, name string, args ...string) error {
	cmd := command(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// command returns a cmd that, once ctx is done, is interrupted rather than
// killed so cmake can stop its own children. It is killed if it has not
// exited after InterruptGrace.
func command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := execabs.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = InterruptGrace
	return cmd
}
