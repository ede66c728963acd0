package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// packageLogLevels stores per-package log level overrides.
// Keys are exact component names ("linker") or wildcard patterns ("ceg.*").
var (
	packageLogLevels = make(map[string]LogLevel)
	packageLogMutex  sync.RWMutex
)

// SetPackageLogLevels replaces the per-package level overrides.
// Input format: map["component"]="DEBUG" or map["ceg.*"]="INFO".
func SetPackageLogLevels(levels map[string]string) error {
	if levels == nil {
		return nil
	}

	packageLogMutex.Lock()
	defer packageLogMutex.Unlock()

	packageLogLevels = make(map[string]LogLevel)
	for pkg, levelStr := range levels {
		level, err := parseLevel(levelStr)
		if err != nil {
			return fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
		packageLogLevels[pkg] = level
	}
	return nil
}

// GetPackageLogLevel returns the effective override for a component name,
// or -1 when none is configured. Exact matches win over wildcard patterns;
// the longest matching pattern is most specific.
func GetPackageLogLevel(packageName string) LogLevel {
	packageLogMutex.RLock()
	defer packageLogMutex.RUnlock()

	if level, exists := packageLogLevels[packageName]; exists {
		return level
	}

	var patterns []string
	for pattern := range packageLogLevels {
		if matchesPattern(packageName, pattern) {
			patterns = append(patterns, pattern)
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		return len(patterns[i]) > len(patterns[j])
	})

	if len(patterns) > 0 {
		return packageLogLevels[patterns[0]]
	}
	return LogLevel(-1)
}

// matchesPattern reports whether packageName matches pattern.
// "ceg.*" matches "ceg.engine" and "ceg.evidence" but not "ceg" itself.
func matchesPattern(packageName, pattern string) bool {
	if packageName == pattern {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(packageName, prefix+".")
	}
	return false
}
