package domain

import (
	"fmt"
	"strings"
	"time"
)

// versionTimeLayout keeps versions lexically sortable by training time.
const versionTimeLayout = "20060102T150405Z"

// FormatVersion builds "{algorithm}_{region_id}_{timestamp}".
func FormatVersion(algo Algorithm, regionID string, trainedAt time.Time) string {
	return fmt.Sprintf("%s_%s_%s", algo, regionID, trainedAt.UTC().Format(versionTimeLayout))
}

// VersionInfo is the decoded form of a model version string.
type VersionInfo struct {
	Version   string
	Algorithm Algorithm
	RegionID  string
	TrainedAt time.Time
}

// ParseVersion decodes a version string. The algorithm is matched by known prefix
// because algorithm names may themselves contain underscores.
func ParseVersion(version string) (VersionInfo, error) {
	var algo Algorithm
	for _, known := range Algorithms {
		if strings.HasPrefix(version, string(known)+"_") {
			algo = known
			break
		}
	}
	if algo == "" {
		return VersionInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, version)
	}

	rest := strings.TrimPrefix(version, string(algo)+"_")
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return VersionInfo{}, fmt.Errorf("malformed model version %q", version)
	}

	trainedAt, err := time.Parse(versionTimeLayout, rest[idx+1:])
	if err != nil {
		return VersionInfo{}, fmt.Errorf("malformed model version %q: %w", version, err)
	}

	return VersionInfo{
		Version:   version,
		Algorithm: algo,
		RegionID:  rest[:idx],
		TrainedAt: trainedAt,
	}, nil
}
