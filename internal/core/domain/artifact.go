package domain

import (
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

type FileKind string

const (
	FileKindModel  FileKind = "model"
	FileKindSource FileKind = "source"
)

func ParseFileKind(s string) (FileKind, error) {
	switch FileKind(strings.ToLower(strings.TrimSpace(s))) {
	case FileKindModel, "glb":
		return FileKindModel, nil
	case FileKindSource, "blend":
		return FileKindSource, nil
	}
	return "", &ValidationError{Field: "file_kind", Reason: "unknown file kind", Expected: "model|source", Actual: s}
}

// GroupKeyCurrent is the group key shared by the live artifacts of an asset.
const GroupKeyCurrent = "current"

type BackupStatus string

const (
	BackupCreated BackupStatus = "created"
	BackupSkipped BackupStatus = "skipped"
)

type ArtifactVersion struct {
	ID            uuid.UUID `json:"id"`
	AssetID       uuid.UUID `json:"asset_id"`
	FileKind      FileKind  `json:"file_kind"`
	Locator       string    `json:"locator"`
	SourceLocator string    `json:"source_locator,omitempty"`
	SizeBytes     int64     `json:"size_bytes"`
	IsCurrent     bool      `json:"is_current"`
	IsBackup      bool      `json:"is_backup"`
	GroupKey      string    `json:"group_key"`
	LastModified  time.Time `json:"last_modified"`
}

type VersionGroup struct {
	GroupKey  string           `json:"group_key"`
	IsCurrent bool             `json:"is_current"`
	Timestamp int64            `json:"timestamp"`
	Model     *ArtifactVersion `json:"model,omitempty"`
	Source    *ArtifactVersion `json:"source,omitempty"`
}

// GroupAndFilter folds versions into groups keyed by GroupKey. The current
// group is always present and sorted first; backup groups follow newest
// first. Backup groups without a source file are dropped.
func GroupAndFilter(versions []ArtifactVersion) []VersionGroup {
	current := VersionGroup{GroupKey: GroupKeyCurrent, IsCurrent: true}
	backups := make(map[string]*VersionGroup)

	for i := range versions {
		v := versions[i]
		var g *VersionGroup
		if v.IsCurrent || v.GroupKey == GroupKeyCurrent {
			g = &current
		} else {
			g = backups[v.GroupKey]
			if g == nil {
				ts, _ := strconv.ParseInt(v.GroupKey, 10, 64)
				g = &VersionGroup{GroupKey: v.GroupKey, Timestamp: ts}
				backups[v.GroupKey] = g
			}
		}
		switch v.FileKind {
		case FileKindModel:
			if g.Model == nil || v.LastModified.After(g.Model.LastModified) {
				g.Model = &v
			}
		case FileKindSource:
			if g.Source == nil || v.LastModified.After(g.Source.LastModified) {
				g.Source = &v
			}
		}
	}

	out := make([]VersionGroup, 0, len(backups)+1)
	out = append(out, current)
	rest := make([]VersionGroup, 0, len(backups))
	for _, g := range backups {
		if g.Source == nil {
			continue
		}
		rest = append(rest, *g)
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Timestamp == rest[j].Timestamp {
			return rest[i].GroupKey > rest[j].GroupKey
		}
		return rest[i].Timestamp > rest[j].Timestamp
	})
	return append(out, rest...)
}

var folder = cases.Fold()

// NormalizeName case-folds s and collapses whitespace so artifact names can be
// compared against an article id.
func NormalizeName(s string) string {
	return folder.String(strings.Join(strings.Fields(s), " "))
}

// ArtifactBaseName returns the file name of a locator or file name without
// its directory, query string or extension.
func ArtifactBaseName(locator string) string {
	base := path.Base(locatorPath(locator))
	return strings.TrimSuffix(base, path.Ext(base))
}

func FileExt(locator string) string {
	return strings.ToLower(path.Ext(locatorPath(locator)))
}

func locatorPath(locator string) string {
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		return u.Path
	}
	return locator
}

// MatchesArticle reports whether the artifact name starts with the article id
// once both are normalized.
func MatchesArticle(name, articleID string) bool {
	want := NormalizeName(articleID)
	if want == "" {
		return false
	}
	return strings.HasPrefix(NormalizeName(ArtifactBaseName(name)), want)
}
