package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-console/pkg/errors"
)

// CheckServerCompatibility checks if the console and server versions are
// compatible. Returns nil if compatible, error with details if not.
//
// Compatibility Rules:
//   - If either version is "main" (development build), compatibility check is skipped
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g., 1.2.0 is compatible with 1.2.5)
func CheckServerCompatibility(consoleVersion, serverVersion string) error {
	// Strip 'v' prefix if present for consistency
	consoleVersion = strings.TrimPrefix(consoleVersion, "v")
	serverVersion = strings.TrimPrefix(serverVersion, "v")

	// Skip version check for "main" (development builds)
	if consoleVersion == "main" || serverVersion == "main" {
		return nil
	}

	consoleSemver, err := semver.NewVersion(consoleVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid console version '%s'", consoleVersion)
	}

	serverSemver, err := semver.NewVersion(serverVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid server version '%s'", serverVersion)
	}

	if consoleSemver.Major() != serverSemver.Major() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "major version mismatch: console is %d.x.x but server is %d.x.x",
			consoleSemver.Major(), serverSemver.Major())
	}

	if consoleSemver.Minor() != serverSemver.Minor() {
		return errors.Newf(errors.ErrCodeVersionMismatch, "minor version mismatch: console is %d.%d.x but server is %d.%d.x",
			consoleSemver.Major(), consoleSemver.Minor(),
			serverSemver.Major(), serverSemver.Minor())
	}

	// Patch versions can differ, so we're compatible
	return nil
}
