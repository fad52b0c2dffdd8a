package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvVcpkgRoot, EnvGenerator, EnvCMake} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	p, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoadProjectFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), `
source_dir: engine
build_dir: out
generator: Ninja
cmake_minimum: "3.20"
`)

	p, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "engine", p.SourceDir)
	assert.Equal(t, "out", p.BuildDir)
	assert.Equal(t, "Ninja", p.Generator)
	assert.Equal(t, "3.20", p.CMakeMinimum)
	assert.Equal(t, filepath.Join("..", "vcpkg"), p.VcpkgRoot, "unset keys keep defaults")
	assert.Equal(t, "cmake", p.CMake)
}

func TestLoadEmptyProjectFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "")

	p, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "sourcedir: src\n")

	_, err := Load(root)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadRejectsBadVersion(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "cmake_minimum: latest\n")

	_, err := Load(root)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadRejectsSameDirs(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "source_dir: src\nbuild_dir: ./src\n")

	_, err := Load(root)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEnvPrecedence(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "generator: Ninja\nvcpkg_root: deps/vcpkg\n")
	writeFile(t, filepath.Join(root, EnvFileName), "KEA_GENERATOR=\"Unix Makefiles\"\nKEA_VCPKG_ROOT=/opt/vcpkg\n")
	t.Setenv(EnvVcpkgRoot, "/srv/vcpkg")

	p, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "Unix Makefiles", p.Generator, ".env overrides kea.yaml")
	assert.Equal(t, "/srv/vcpkg", p.VcpkgRoot, "process env overrides .env")
}

func TestDotenvDoesNotMutateProcessEnv(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, EnvFileName), "KEA_CMAKE=/opt/cmake/bin/cmake\n")

	p, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "/opt/cmake/bin/cmake", p.CMake)
	assert.Empty(t, os.Getenv(EnvCMake))
}

func TestLoadRejectsBuildDirHoldingSources(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"parent of root", "build_dir: ..\n"},
		{"root itself", "build_dir: .\n"},
		{"sources inside build", "source_dir: build/src\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			root := t.TempDir()
			writeFile(t, filepath.Join(root, FileName), tt.yml)

			_, err := Load(root)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadAllowsBuildDirOutsideRoot(t *testing.T) {
	clearEnv(t)
	root := filepath.Join(t.TempDir(), "kea")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeFile(t, filepath.Join(root, FileName), "build_dir: ../kea-build\n")

	p, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "../kea-build", p.BuildDir)
}

func TestLoadDefinesAndOptions(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), `
defines:
  CMAKE_CXX_STANDARD: "20"
options:
  KEA_BUILD_TESTS: false
`)

	p, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"CMAKE_CXX_STANDARD": "20"}, p.Defines)
	assert.Equal(t, map[string]bool{"KEA_BUILD_TESTS": false}, p.Options)
}

func TestLoadRejectsEmptyDefineKey(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "defines:\n  \"\": x\n")

	_, err := Load(root)
	assert.ErrorIs(t, err, ErrInvalid)
}
