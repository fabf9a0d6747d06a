package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ConfigVersion is the schema version of a configuration file, "v1" or "v1.2"
type ConfigVersion struct {
	Major int
	Minor int
}

// ParseVersion parses "v<major>[.<minor>]"; the v prefix is optional
func ParseVersion(s string) (ConfigVersion, error) {
	majorStr, minorStr, hasMinor := strings.Cut(strings.TrimPrefix(s, "v"), ".")

	var v ConfigVersion
	var err error
	if v.Major, err = strconv.Atoi(majorStr); err != nil {
		return ConfigVersion{}, fmt.Errorf("invalid config version %q: %w", s, err)
	}
	if hasMinor {
		if v.Minor, err = strconv.Atoi(minorStr); err != nil {
			return ConfigVersion{}, fmt.Errorf("invalid config version %q: %w", s, err)
		}
	}
	if v.Major < 0 || v.Minor < 0 {
		return ConfigVersion{}, fmt.Errorf("invalid config version %q: negative component", s)
	}
	return v, nil
}

func (v ConfigVersion) String() string {
	if v.Minor == 0 {
		return "v" + strconv.Itoa(v.Major)
	}
	return fmt.Sprintf("v%d.%d", v.Major, v.Minor)
}

// Compare returns -1, 0 or +1 as v is older than, equal to or newer than other
func (v ConfigVersion) Compare(other ConfigVersion) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	default:
		return sign(v.Minor - other.Minor)
	}
}

// IsNewerThan reports whether v sorts after other
func (v ConfigVersion) IsNewerThan(other ConfigVersion) bool {
	return v.Compare(other) > 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// GetCurrentVersion returns the version this build reads and writes
func GetCurrentVersion() ConfigVersion {
	v, _ := ParseVersion(CurrentConfigVersion)
	return v
}

// ValidateVersion accepts files of the current major version that are not
// newer than this build
func ValidateVersion(config *Config) error {
	if config.Version == "" {
		return fmt.Errorf("configuration version is missing")
	}
	v, err := ParseVersion(config.Version)
	if err != nil {
		return err
	}

	current := GetCurrentVersion()
	if v.Major != current.Major {
		return fmt.Errorf("incompatible configuration version %s, this build reads %s", v, current)
	}
	if v.IsNewerThan(current) {
		return fmt.Errorf("configuration version %s is newer than %s, upgrade ccfraud", v, current)
	}
	return nil
}
