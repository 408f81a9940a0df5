package catalogfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bobmcallan/ticker/internal/models"
)

// writeAtomic writes data to a temp file in the target directory, fsyncs it
// and renames it over the catalog. If the rename is refused it falls back to
// writing in place behind a backup copy that is restored on failure.
func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return models.NewError(models.KindPersistenceFailure, "catalog temp", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return models.NewError(models.KindPersistenceFailure, "catalog temp write", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return models.NewError(models.KindPersistenceFailure, "catalog temp sync", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return models.NewError(models.KindPersistenceFailure, "catalog temp close", err)
	}

	renameErr := s.rename(tmpPath, s.path)
	if renameErr == nil {
		return nil
	}
	os.Remove(tmpPath)

	s.logger.Warn().Err(renameErr).Str("path", s.path).Msg("Catalog rename failed, writing behind backup")
	return s.writeWithBackup(data)
}

// writeWithBackup copies the current catalog aside, writes the new one in
// place, and restores the copy if the write fails.
func (s *Store) writeWithBackup(data []byte) error {
	backup := s.path + ".bak"

	original, err := os.ReadFile(s.path)
	hadOriginal := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return models.NewError(models.KindPersistenceFailure, "catalog backup read", err)
	}
	if hadOriginal {
		if err := os.WriteFile(backup, original, 0644); err != nil {
			return models.NewError(models.KindPersistenceFailure, "catalog backup write", err)
		}
	}

	writeErr := s.writeFile(s.path, data, 0644)
	if writeErr == nil {
		if hadOriginal {
			os.Remove(backup)
		}
		return nil
	}

	if !hadOriginal {
		os.Remove(s.path)
		return models.NewError(models.KindPersistenceFailure, "catalog write", writeErr)
	}

	restored, err := os.ReadFile(backup)
	if err == nil {
		err = os.WriteFile(s.path, restored, 0644)
	}
	if err != nil {
		return models.NewError(models.KindPersistenceFailure, "catalog restore",
			fmt.Errorf("write failed (%v) and restore from %s failed: %w", writeErr, backup, err))
	}
	os.Remove(backup)
	return models.NewError(models.KindPersistenceFailure, "catalog write", writeErr)
}
