package cmake

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
	"golang.org/x/sys/execabs"
)

// Version runs "<bin> --version" and returns the reported version in
// semver form (e.g. "v3.28.1").
func Version(ctx context.Context, bin string) (string, error) {
	out, err := execabs.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version: %w", bin, err)
	}
	return ParseVersion(out)
}

// ParseVersion extracts the version from the output of "cmake --version",
// whose first line reads "cmake version 3.28.1". Suffixes such as "-rc2"
// or "-dirty" are kept as semver prerelease tags.
func ParseVersion(out []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		ver, ok := strings.CutPrefix(line, "cmake version ")
		if !ok {
			continue
		}
		v := Canonical(ver)
		if v == "" {
			return "", fmt.Errorf("cmake: malformed version %q", ver)
		}
		return v, nil
	}
	return "", fmt.Errorf("cmake: no version in output")
}

// Canonical converts a CMake style version ("3.20", "3.28.1") to a
// canonical semver string, or "" if it is not a version.
func Canonical(ver string) string {
	ver = strings.TrimSpace(ver)
	if ver == "" {
		return ""
	}
	if !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return semver.Canonical(ver)
}

// AtLeast reports whether version have satisfies the minimum want.
// Both are CMake style or semver versions.
func AtLeast(have, want string) bool {
	h, w := Canonical(have), Canonical(want)
	if h == "" || w == "" {
		return false
	}
	// a prerelease of the minimum still satisfies it
	return semver.Compare(stripPrerelease(h), w) >= 0
}

func stripPrerelease(v string) string {
	if pre := semver.Prerelease(v); pre != "" {
		return strings.TrimSuffix(v, pre)
	}
	return v
}
