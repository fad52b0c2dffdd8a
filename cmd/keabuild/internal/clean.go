package internal

import (
	"github.com/goplus/keabuild/internal/build"
	"github.com/goplus/keabuild/internal/config"
	"github.com/goplus/keabuild/internal/env"
	"github.com/goplus/keabuild/internal/platform"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the build directory",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	root, err := env.ProjectRoot(rootDir)
	if err != nil {
		return err
	}
	proj, err := config.Load(root)
	if err != nil {
		return err
	}
	cfg := build.NewConfig(root, proj, platform.Host())
	if err := cfg.ValidateDirs(); err != nil {
		return err
	}
	log.Info("cleaning", cfg.BuildDir)
	return build.Clean(cfg.BuildDir)
}
