// Package platform classifies the host operating system for build purposes.
package platform

import "runtime"

// Platform is the class of host the build runs on.
type Platform int

const (
	// Other is a host with no supported CMake toolchain.
	Other Platform = iota
	// POSIX covers Linux, macOS, the BSDs and other Unix-like hosts.
	POSIX
	// Windows hosts build through vcpkg and multi-config generators.
	Windows
)

func (p Platform) String() string {
	switch p {
	case POSIX:
		return "posix"
	case Windows:
		return "windows"
	}
	return "other"
}

// Detect maps a GOOS value to its Platform.
func Detect(goos string) Platform {
	switch goos {
	case "windows":
		return Windows
	case "js", "wasip1", "plan9", "":
		return Other
	}
	return POSIX
}

// Host returns the Platform of the running process.
func Host() Platform {
	return Detect(runtime.GOOS)
}
