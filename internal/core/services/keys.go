package services

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"asset-lifecycle-service/internal/core/domain"
)

var backupSuffix = regexp.MustCompile(`_backup_\d+$`)

// canonicalKey places every committed artifact under its own timestamp
// directory so a new write never reuses a locator.
func canonicalKey(assetID uuid.UUID, kind domain.FileKind, ts int64, fileName string) string {
	base := domain.ArtifactBaseName(fileName)
	return fmt.Sprintf("assets/%s/%s/%d/%s%s", assetID, kind, ts, base, domain.FileExt(fileName))
}

func backupKey(assetID uuid.UUID, kind domain.FileKind, currentLocator string, ts int64) string {
	base := backupSuffix.ReplaceAllString(domain.ArtifactBaseName(currentLocator), "")
	return fmt.Sprintf("backups/%s/%s/%s_backup_%d%s", assetID, kind, base, ts, domain.FileExt(currentLocator))
}

func restoredName(backupLocator string) string {
	base := backupSuffix.ReplaceAllString(domain.ArtifactBaseName(backupLocator), "")
	return base + domain.FileExt(backupLocator)
}
