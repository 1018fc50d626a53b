// Package artifact defines the shared semantics for all SageWorks artifacts
// (DataSources, FeatureSets, Models, Endpoints): naming rules, tag storage,
// status metadata, and readiness checks.
package artifact

import (
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// Kind identifies the artifact type.
type Kind string

const (
	KindDataSource Kind = "data-source"
	KindFeatureSet Kind = "feature-set"
	KindModel      Kind = "model"
	KindEndpoint   Kind = "endpoint"
)

// TagDelimiter separates list values stored inside a single metadata value.
const TagDelimiter = "::"

// Well-known metadata keys shared by all artifact kinds.
const (
	MetaStatus     = "sageworks_status"
	MetaTags       = "sageworks_tags"
	MetaHealthTags = "sageworks_health_tags"
	MetaOwner      = "sageworks_owner"
	MetaInput      = "sageworks_input"
)

// Status values for MetaStatus.
const (
	StatusInitializing = "initializing"
	StatusReady        = "ready"
	StatusFailed       = "failed"
	StatusDeleting     = "deleting"
)

// Meta holds the string key/value metadata attached to an artifact.
type Meta map[string]string

// Record is the catalog row for an artifact.
type Record struct {
	Kind      Kind
	Name      string
	Input     string // name of the upstream artifact (or source path)
	Owner     string
	SizeBytes int64
	Created   time.Time
	Modified  time.Time
}

// Ref identifies an artifact by kind and name.
type Ref struct {
	Kind Kind
	Name string
}

// CompliantName lowercases the name and collapses all separators to the
// given delimiter ("_" for data sources and feature sets, "-" for models
// and endpoints). Any character that is not alphanumeric or a separator
// is dropped. A non-compliant input is logged and converted.
func CompliantName(name, delimiter string, logger *slog.Logger) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			b.WriteRune(unicode.ToLower(c))
		case c == '_' || c == '-':
			b.WriteString(delimiter)
		}
	}
	clean := b.String()
	if clean != name && logger != nil {
		logger.Warn("artifact name is not compliant, converting",
			"name", name, "converted", clean)
	}
	return clean
}

// ErrEmptyName flags a name left with no characters after compliance
// conversion.
var ErrEmptyName = errors.New("artifact name is empty")

// ValidateName rejects names that must never reach the catalog or the
// artifact bucket.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	return nil
}

// JoinTags serializes a tag list into a single metadata value.
func JoinTags(tags []string) string {
	return strings.Join(tags, TagDelimiter)
}

// SplitTags deserializes a metadata value into a tag list.
func SplitTags(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, TagDelimiter)
}

// AddTag appends a tag to a serialized tag list, preserving order and
// skipping duplicates.
func AddTag(value, tag string) string {
	tags := SplitTags(value)
	for _, t := range tags {
		if t == tag {
			return value
		}
	}
	return JoinTags(append(tags, tag))
}

// RemoveTag drops a tag from a serialized tag list if present.
func RemoveTag(value, tag string) string {
	tags := SplitTags(value)
	out := tags[:0]
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return JoinTags(out)
}

// ExpectedMeta is the metadata every artifact must carry once onboarded.
// Artifact kinds with additional requirements append to this list.
var ExpectedMeta = []string{MetaStatus}

// Ready reports whether the artifact's metadata is a superset of the
// expected keys. An artifact missing expected metadata needs onboarding.
func Ready(meta Meta, expected []string) bool {
	for _, key := range expected {
		if _, ok := meta[key]; !ok {
			return false
		}
	}
	return true
}

// HealthCheck returns the list of health issues for an artifact given its
// metadata. An empty list means the artifact is healthy.
func HealthCheck(meta Meta, expected []string) []string {
	if !Ready(meta, expected) {
		return []string{"needs_onboard"}
	}
	return nil
}

// Summary is the generic summary every artifact can produce. Kind-specific
// details live on the artifact types themselves.
type Summary struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Input      string   `json:"input"`
	Status     string   `json:"status"`
	Owner      string   `json:"owner"`
	Tags       []string `json:"tags"`
	HealthTags []string `json:"health_tags"`
	SizeBytes  int64    `json:"size_bytes"`
	Created    string   `json:"created"`
	Modified   string   `json:"modified"`
}

// Summarize combines a catalog record and its metadata into a Summary.
// Health tags merge the persisted tags with a fresh health check
// against the kind's expected metadata.
func Summarize(rec *Record, meta Meta, expected []string) Summary {
	health := SplitTags(meta[MetaHealthTags])
	for _, issue := range HealthCheck(meta, expected) {
		duplicate := false
		for _, tag := range health {
			if tag == issue {
				duplicate = true
				break
			}
		}
		if !duplicate {
			health = append(health, issue)
		}
	}
	return Summary{
		Name:       rec.Name,
		Kind:       rec.Kind,
		Input:      rec.Input,
		Status:     meta[MetaStatus],
		Owner:      rec.Owner,
		Tags:       SplitTags(meta[MetaTags]),
		HealthTags: health,
		SizeBytes:  rec.SizeBytes,
		Created:    rec.Created.UTC().Format(time.RFC3339),
		Modified:   rec.Modified.UTC().Format(time.RFC3339),
	}
}
