// Package drive mirrors local export files into one Google Drive folder.
// The folder is created on first use and reused afterwards; an existing
// remote file is updated in place so its ID and sharing links survive.
package drive

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eleveniq/sfexport/pkg/errors"
	"github.com/eleveniq/sfexport/pkg/logger"
)

// folderMimeType is the Drive MIME type for folders.
const folderMimeType = "application/vnd.google-apps.folder"

// api is the slice of the Drive client the synchronizer needs. The real
// implementation wraps *drive.Service; tests substitute a stub.
type api interface {
	FindFolder(ctx context.Context, name, parentID string) (string, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	FindFile(ctx context.Context, folderID, name string) (string, error)
	CreateFile(ctx context.Context, folderID, name, localPath string) (string, error)
	UpdateFile(ctx context.Context, fileID, localPath string) error
}

// Synchronizer pushes local files into the configured Drive folder.
type Synchronizer struct {
	api      api
	folder   string
	parentID string
	logger   *zap.Logger

	folderID string
}

// NewSynchronizer creates a synchronizer over an authenticated Drive
// service for the named folder, optionally scoped to a parent folder ID.
func NewSynchronizer(svc Service, folder, parentID string, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		api:      svc,
		folder:   folder,
		parentID: parentID,
		logger:   logger,
	}
}

func newSynchronizerWithAPI(a api, folder, parentID string, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{api: a, folder: folder, parentID: parentID, logger: logger}
}

// Result reports what a sync did.
type Result struct {
	FileID   string
	FolderID string
	Created  bool
}

// Sync ensures the remote folder holds a file matching the local one.
// If a remote file of the same name exists its content is replaced,
// keeping the file ID; otherwise a new file is created.
func (s *Synchronizer) Sync(ctx context.Context, localPath string) (*Result, error) {
	name := filepath.Base(localPath)
	target := s.folder + "/" + name
	log := s.logger.With(logger.ContextFields(ctx)...)

	folderID, err := s.ensureFolder(ctx, log)
	if err != nil {
		return nil, errors.NewSyncError(target, err)
	}

	fileID, err := s.api.FindFile(ctx, folderID, name)
	if err != nil {
		return nil, errors.NewSyncError(target, err)
	}

	if fileID != "" {
		if err := s.api.UpdateFile(ctx, fileID, localPath); err != nil {
			return nil, errors.NewSyncError(target, err)
		}
		log.Info("remote file updated",
			zap.String("name", name), zap.String("file_id", fileID))
		return &Result{FileID: fileID, FolderID: folderID}, nil
	}

	fileID, err = s.api.CreateFile(ctx, folderID, name, localPath)
	if err != nil {
		return nil, errors.NewSyncError(target, err)
	}
	log.Info("remote file created",
		zap.String("name", name), zap.String("file_id", fileID))
	return &Result{FileID: fileID, FolderID: folderID, Created: true}, nil
}

// ensureFolder resolves the target folder once per synchronizer,
// creating it when absent. Repeated runs reuse the same folder rather
// than creating duplicates.
func (s *Synchronizer) ensureFolder(ctx context.Context, log *zap.Logger) (string, error) {
	if s.folderID != "" {
		return s.folderID, nil
	}

	id, err := s.api.FindFolder(ctx, s.folder, s.parentID)
	if err != nil {
		return "", err
	}
	if id == "" {
		id, err = s.api.CreateFolder(ctx, s.folder, s.parentID)
		if err != nil {
			return "", err
		}
		log.Info("remote folder created",
			zap.String("name", s.folder), zap.String("folder_id", id))
	}

	s.folderID = id
	return id, nil
}

// escapeQuery escapes backslashes and single quotes for Drive list
// queries. Backslashes go first so the quote escapes stay intact.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
