// Package config loads the optional per-project build settings.
//
// Settings come from three layers, lowest precedence first: the kea.yaml
// project file, the project's .env file, and the process environment.
// Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goplus/keabuild/internal/env"
	"github.com/goplus/keabuild/pkgs/buildsys/cmake"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the project file looked up in the project root.
	FileName = "kea.yaml"
	// EnvFileName is the dotenv file looked up in the project root.
	EnvFileName = ".env"
)

// Environment overrides.
const (
	EnvVcpkgRoot = "KEA_VCPKG_ROOT"
	EnvGenerator = "KEA_GENERATOR"
	EnvCMake     = "KEA_CMAKE"
)

// ErrInvalid reports a malformed project file.
var ErrInvalid = errors.New("invalid project config")

// Project holds the build settings of a project. Relative paths are
// relative to the project root.
type Project struct {
	SourceDir    string `yaml:"source_dir"`
	BuildDir     string `yaml:"build_dir"`
	VcpkgRoot    string `yaml:"vcpkg_root"`
	Generator    string `yaml:"generator"`
	CMake        string `yaml:"cmake"`
	CMakeMinimum string `yaml:"cmake_minimum"`

	// Defines are passed to the configure step as -D<key>=<value>.
	Defines map[string]string `yaml:"defines"`
	// Options are passed to the configure step as -D<key>:BOOL=ON/OFF.
	Options map[string]bool `yaml:"options"`
}

// Default returns the settings used when no project file exists: sources
// in src/, output in build/ and vcpkg checked out next to the project.
func Default() Project {
	return Project{
		SourceDir: "src",
		BuildDir:  "build",
		VcpkgRoot: filepath.Join("..", "vcpkg"),
		CMake:     "cmake",
	}
}

// Load reads root/kea.yaml and root/.env, both optional, and applies
// environment overrides.
func Load(root string) (Project, error) {
	p := Default()
	if err := p.readFile(filepath.Join(root, FileName)); err != nil {
		return Project{}, err
	}
	dotenv, err := readDotenv(filepath.Join(root, EnvFileName))
	if err != nil {
		return Project{}, err
	}
	p.applyEnv(dotenv)
	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	if err := p.validateIn(root); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Validate checks that required settings are present and well-formed.
func (p Project) Validate() error {
	if p.SourceDir == "" {
		return fmt.Errorf("%w: source_dir is empty", ErrInvalid)
	}
	if p.BuildDir == "" {
		return fmt.Errorf("%w: build_dir is empty", ErrInvalid)
	}
	if filepath.Clean(p.SourceDir) == filepath.Clean(p.BuildDir) {
		return fmt.Errorf("%w: build_dir must differ from source_dir", ErrInvalid)
	}
	for key := range p.Defines {
		if key == "" {
			return fmt.Errorf("%w: empty key in defines", ErrInvalid)
		}
	}
	for key := range p.Options {
		if key == "" {
			return fmt.Errorf("%w: empty key in options", ErrInvalid)
		}
	}
	if p.CMakeMinimum != "" && cmake.Canonical(p.CMakeMinimum) == "" {
		return fmt.Errorf("%w: cmake_minimum %q is not a version", ErrInvalid, p.CMakeMinimum)
	}
	return nil
}

// validateIn rejects a build_dir that, resolved against root, is or
// contains the root or source_dir.
func (p Project) validateIn(root string) error {
	buildDir := env.Resolve(root, p.BuildDir)
	if env.Within(root, buildDir) {
		return fmt.Errorf("%w: build_dir %s contains the project root", ErrInvalid, p.BuildDir)
	}
	if env.Within(env.Resolve(root, p.SourceDir), buildDir) {
		return fmt.Errorf("%w: build_dir %s contains source_dir %s", ErrInvalid, p.BuildDir, p.SourceDir)
	}
	return nil
}

func (p *Project) readFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vars, nil
}

// applyEnv overrides settings from the process environment, falling back
// to dotenv values. Empty values are ignored.
func (p *Project) applyEnv(dotenv map[string]string) {
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		return dotenv[key]
	}
	if v := lookup(EnvVcpkgRoot); v != "" {
		p.VcpkgRoot = v
	}
	if v := lookup(EnvGenerator); v != "" {
		p.Generator = v
	}
	if v := lookup(EnvCMake); v != "" {
		p.CMake = v
	}
}
