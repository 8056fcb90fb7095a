package drive

import (
	"context"
	"fmt"
	"os"

	drivev3 "google.golang.org/api/drive/v3"
)

// Service adapts *drive.Service to the synchronizer's api.
type Service struct {
	files *drivev3.FilesService
}

// WrapService wraps an authenticated Drive service.
func WrapService(svc *drivev3.Service) Service {
	return Service{files: svc.Files}
}

// FindFolder returns the ID of the first non-trashed folder matching the
// name (and parent, when given), or "" when absent.
func (s Service) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false",
		escapeQuery(name), folderMimeType)
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}

	list, err := s.files.List().Q(q).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// CreateFolder creates the folder and returns its ID.
func (s Service) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &drivev3.File{
		Name:     name,
		MimeType: folderMimeType,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	folder, err := s.files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return folder.Id, nil
}

// FindFile returns the ID of the first non-trashed file with the given
// name inside the folder, or "" when absent.
func (s Service) FindFile(ctx context.Context, folderID, name string) (string, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false",
		escapeQuery(name), escapeQuery(folderID))

	list, err := s.files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// CreateFile uploads a new file into the folder and returns its ID.
// The client library handles resumable upload and retries underneath.
func (s Service) CreateFile(ctx context.Context, folderID, name, localPath string) (string, error) {
	f, err := os.Open(localPath) //nolint:gosec // G304: path produced by the persister
	if err != nil {
		return "", err
	}
	defer f.Close()

	meta := &drivev3.File{
		Name:    name,
		Parents: []string{folderID},
	}

	created, err := s.files.Create(meta).Media(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// UpdateFile replaces the content of an existing file, creating a new
// version under the same ID.
func (s Service) UpdateFile(ctx context.Context, fileID, localPath string) error {
	f, err := os.Open(localPath) //nolint:gosec // G304: path produced by the persister
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = s.files.Update(fileID, &drivev3.File{}).Media(f).Context(ctx).Do()
	return err
}
