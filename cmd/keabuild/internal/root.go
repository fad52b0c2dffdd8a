package internal

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"

	"github.com/goplus/keabuild/internal/build"
	"github.com/goplus/keabuild/internal/config"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

// Exit codes of the keabuild binary. A failing cmake process passes its
// own exit status through instead.
const (
	exitFailure     = 1
	exitConfigError = 2
)

var (
	rootDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "keabuild",
	Short: "keabuild builds the Kea raytracer",
	Long: `keabuild configures the Kea raytracer with CMake and builds it.
Without a subcommand it runs "keabuild build".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetOutputLevel(log.Ldebug)
		} else {
			log.SetOutputLevel(log.Linfo)
		}
	},
	RunE: runBuild,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	addBuildFlags(rootCmd.Flags())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error(err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	switch {
	case errors.Is(err, build.ErrUnsupportedPlatform),
		errors.Is(err, build.ErrCMakeTooOld),
		errors.Is(err, build.ErrUnsafeBuildDir),
		errors.Is(err, config.ErrInvalid):
		return exitConfigError
	}
	return exitFailure
}
