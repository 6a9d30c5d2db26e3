// Package reliability backs up the SQLite database and every markdown
// report file to an S3-compatible bucket, with age-based rotation.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	backupPrefix = "stock-analysis-backup-"
	backupSuffix = ".tar.gz"
	timestampFmt = "2006-01-02-150405"

	// rotationFloor backups are always kept regardless of age.
	rotationFloor = 3
)

// Uploader is the bucket boundary BackupService talks to; *S3Client is
// the production implementation.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// BackupMetadata describes the contents of one backup archive.
type BackupMetadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Files     []FileMetadata `json:"files"`
}

// FileMetadata describes one file inside a backup archive.
type FileMetadata struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes one backup object stored in the bucket.
type BackupInfo struct {
	Key       string
	Timestamp time.Time
	SizeBytes int64
}

// BackupService archives the database file plus the reports directory
// and uploads the archive. A nil Uploader makes every method a no-op so
// deployments without a bucket configured lose nothing but the backups.
type BackupService struct {
	uploader      Uploader
	dbPath        string
	reportsDir    string
	retentionDays int
	log           zerolog.Logger
}

// NewBackupService constructs a BackupService. uploader may be nil.
func NewBackupService(uploader Uploader, dbPath, reportsDir string, retentionDays int, log zerolog.Logger) *BackupService {
	return &BackupService{
		uploader:      uploader,
		dbPath:        dbPath,
		reportsDir:    reportsDir,
		retentionDays: retentionDays,
		log:           log.With().Str("component", "backup-service").Logger(),
	}
}

// Enabled reports whether a bucket is configured.
func (s *BackupService) Enabled() bool { return s.uploader != nil }

// CreateAndUploadBackup archives the database and reports, uploads the
// archive, and rotates old backups.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	s.log.Info().Msg("starting backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp("", "backup-staging-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	files, metadata, err := s.collectFiles()
	if err != nil {
		return err
	}

	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	files = append(files, metadataPath)

	archiveName := backupPrefix + time.Now().Format(timestampFmt) + backupSuffix
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, files); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.uploader.Upload(ctx, archiveName, archiveFile); err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}

	info, _ := os.Stat(archivePath)
	var sizeKB int64
	if info != nil {
		sizeKB = info.Size() / 1024
	}
	s.log.Info().
		Dur("duration", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_kb", sizeKB).
		Msg("backup uploaded")

	if err := s.RotateBackups(ctx); err != nil {
		s.log.Warn().Err(err).Msg("backup rotation failed")
	}
	return nil
}

// collectFiles gathers the database file and every markdown report,
// computing per-file checksums for the metadata manifest.
func (s *BackupService) collectFiles() ([]string, BackupMetadata, error) {
	metadata := BackupMetadata{Timestamp: time.Now().UTC()}
	var files []string

	candidates := []string{s.dbPath}
	if s.reportsDir != "" {
		reports, err := filepath.Glob(filepath.Join(s.reportsDir, "*.md"))
		if err == nil {
			sort.Strings(reports)
			candidates = append(candidates, reports...)
		}
	}

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			continue // a missing reports dir or db-not-yet-created is not fatal
		}
		checksum, err := fileChecksum(path)
		if err != nil {
			return nil, metadata, fmt.Errorf("checksum %s: %w", path, err)
		}
		files = append(files, path)
		metadata.Files = append(metadata.Files, FileMetadata{
			Name:      filepath.Base(path),
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	if len(files) == 0 {
		return nil, metadata, fmt.Errorf("nothing to back up")
	}
	return files, metadata, nil
}

// ListBackups lists backups stored in the bucket, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	if !s.Enabled() {
		return nil, nil
	}

	objects, err := s.uploader.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := parseBackupTimestamp(obj.Key)
		if !ok {
			s.log.Warn().Str("key", obj.Key).Msg("skipping object with unparseable timestamp")
			continue
		}
		backups = append(backups, BackupInfo{Key: obj.Key, Timestamp: ts, SizeBytes: obj.SizeBytes})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// RotateBackups deletes backups older than the retention window while
// always keeping the newest rotationFloor of them.
func (s *BackupService) RotateBackups(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	for _, b := range selectExpired(backups, s.retentionDays, rotationFloor, time.Now()) {
		if err := s.uploader.Delete(ctx, b.Key); err != nil {
			s.log.Warn().Err(err).Str("key", b.Key).Msg("failed to delete expired backup")
			continue
		}
		s.log.Info().Str("key", b.Key).Msg("deleted expired backup")
	}
	return nil
}

// selectExpired returns the backups to delete: those older than
// retentionDays, excluding the newest floor entries. backups must be
// sorted newest first.
func selectExpired(backups []BackupInfo, retentionDays, floor int, now time.Time) []BackupInfo {
	if retentionDays <= 0 || len(backups) <= floor {
		return nil
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	var expired []BackupInfo
	for _, b := range backups[floor:] {
		if b.Timestamp.Before(cutoff) {
			expired = append(expired, b)
		}
	}
	return expired
}

func parseBackupTimestamp(key string) (time.Time, bool) {
	if !strings.HasPrefix(key, backupPrefix) || !strings.HasSuffix(key, backupSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(key, backupPrefix), backupSuffix)
	ts, err := time.Parse(timestampFmt, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// createArchive tars and gzips the given files (flattened to their base
// names) into archivePath.
func createArchive(archivePath string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, path := range files {
		if err := addFileToArchive(tw, path); err != nil {
			return fmt.Errorf("add %s: %w", path, err)
		}
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
