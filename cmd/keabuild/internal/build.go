package internal

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goplus/keabuild/internal/build"
	"github.com/goplus/keabuild/internal/config"
	"github.com/goplus/keabuild/internal/env"
	"github.com/goplus/keabuild/internal/platform"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// buildFlags holds the switches shared by "keabuild" and "keabuild build".
type buildFlags struct {
	clean     bool
	release   bool
	install   bool
	prefix    string
	generator string
	defines   []string
	dryRun    bool
}

var buildOpts buildFlags

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Configure and build the project",
	Long: `Build creates the build directory, runs the CMake configure step
and then "cmake --build". On Windows the vcpkg toolchain next to the
project is passed to CMake.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	addBuildFlags(buildCmd.Flags())
	rootCmd.AddCommand(buildCmd)
}

func addBuildFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&buildOpts.clean, "clean", "c", false, "Remove the build directory before configuring")
	fs.BoolVarP(&buildOpts.release, "release", "r", false, "Build in release mode")
	fs.BoolVarP(&buildOpts.install, "install", "i", false, "Run the install step after building")
	fs.StringVar(&buildOpts.prefix, "prefix", "", "Install prefix")
	fs.StringVarP(&buildOpts.generator, "generator", "G", "", "CMake generator")
	fs.StringArrayVarP(&buildOpts.defines, "define", "D", nil, "Pass KEY=VALUE to the configure step (repeatable)")
	fs.BoolVarP(&buildOpts.dryRun, "dry-run", "n", false, "Print the commands without running them")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	cfg, err := loadConfig(buildOpts)
	if err != nil {
		return err
	}
	b := build.New(cfg)

	if buildOpts.dryRun {
		return b.DryRun(cmd.OutOrStdout())
	}
	res, err := b.Run(cmd.Context())
	if err != nil {
		return err
	}
	log.Info("done:", res.OutputDir)
	return nil
}

// loadConfig combines the project settings with the command-line flags.
func loadConfig(flags buildFlags) (build.Config, error) {
	root, err := env.ProjectRoot(rootDir)
	if err != nil {
		return build.Config{}, err
	}
	proj, err := config.Load(root)
	if err != nil {
		return build.Config{}, err
	}
	if flags.generator != "" {
		proj.Generator = flags.generator
	}
	if len(flags.defines) > 0 {
		defines := make(map[string]string, len(proj.Defines)+len(flags.defines))
		for k, v := range proj.Defines {
			defines[k] = v
		}
		for _, def := range flags.defines {
			key, value, ok := strings.Cut(def, "=")
			if !ok || key == "" {
				return build.Config{}, fmt.Errorf("%w: -D %q is not KEY=VALUE", config.ErrInvalid, def)
			}
			defines[key] = value
		}
		proj.Defines = defines
	}

	cfg := build.NewConfig(root, proj, platform.Host())
	cfg.Clean = flags.clean
	cfg.Release = flags.release
	cfg.Install = flags.install
	if flags.prefix != "" {
		if cfg.Prefix, err = filepath.Abs(flags.prefix); err != nil {
			return build.Config{}, err
		}
	}
	log.Debugf("root=%s source=%s build=%s platform=%s", cfg.Root, cfg.SourceDir, cfg.BuildDir, cfg.Platform)
	return cfg, nil
}
