package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the second-resolution stamp embedded in artifact names.
const TimestampLayout = "2006-01-02-150405"

// DateLayout is the date stamp used in reports.
const DateLayout = "2006-01-02"

type ArtifactKind string

const (
	KindLogical  ArtifactKind = "logical"
	KindPhysical ArtifactKind = "physical"
)

func (k ArtifactKind) Extension() string {
	switch k {
	case KindLogical:
		return ".dump"
	case KindPhysical:
		return ".tar.gz"
	default:
		return ".backup"
	}
}

// BackupExtensions are the suffixes retention is allowed to touch.
var BackupExtensions = []string{KindLogical.Extension(), KindPhysical.Extension()}

type Artifact struct {
	Kind ArtifactKind
	Name string
	Path string
	Size int64
}

func (a Artifact) SizeMB() float64 {
	return float64(a.Size) / (1024 * 1024)
}

// ArtifactName builds <prefix>_<YYYY-MM-DD-HHMMSS><ext>.
func ArtifactName(prefix string, kind ArtifactKind, ts time.Time) string {
	return fmt.Sprintf("%s_%s%s", prefix, ts.Format(TimestampLayout), kind.Extension())
}

// IsBackupFile reports whether name carries one of the backup extensions.
func IsBackupFile(name string) bool {
	for _, ext := range BackupExtensions {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return true
		}
	}
	return false
}

// ParseArtifactTime extracts the timestamp embedded by ArtifactName.
func ParseArtifactTime(name string) (time.Time, error) {
	base := name
	for _, ext := range BackupExtensions {
		base = strings.TrimSuffix(base, ext)
	}

	idx := strings.LastIndex(base, "_")
	if idx < 0 || idx == len(base)-1 {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp in %s", name)
	}

	return time.ParseInLocation(TimestampLayout, base[idx+1:], time.Local)
}
