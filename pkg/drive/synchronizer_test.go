package drive

import (
	"context"
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleveniq/sfexport/pkg/errors"
	"github.com/eleveniq/sfexport/pkg/testutil"
)

// fakeAPI is an in-memory Drive stand-in.
type fakeAPI struct {
	folders map[string]string // name -> id
	files   map[string]string // folderID/name -> id

	folderCreates int
	fileCreates   int
	fileUpdates   int

	findFolderErr error
	updateErr     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		folders: map[string]string{},
		files:   map[string]string{},
	}
}

func (f *fakeAPI) FindFolder(_ context.Context, name, _ string) (string, error) {
	if f.findFolderErr != nil {
		return "", f.findFolderErr
	}
	return f.folders[name], nil
}

func (f *fakeAPI) CreateFolder(_ context.Context, name, _ string) (string, error) {
	f.folderCreates++
	id := "folder-" + name
	f.folders[name] = id
	return id, nil
}

func (f *fakeAPI) FindFile(_ context.Context, folderID, name string) (string, error) {
	return f.files[folderID+"/"+name], nil
}

func (f *fakeAPI) CreateFile(_ context.Context, folderID, name, _ string) (string, error) {
	f.fileCreates++
	id := "file-" + name
	f.files[folderID+"/"+name] = id
	return id, nil
}

func (f *fakeAPI) UpdateFile(_ context.Context, _, _ string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.fileUpdates++
	return nil
}

func TestSyncCreatesFolderAndFile(t *testing.T) {
	api := newFakeAPI()
	s := newSynchronizerWithAPI(api, "ELEVENIQ", "", testutil.TestLogger(t))

	result, err := s.Sync(context.Background(), "/tmp/all_data.xlsx")
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, "file-all_data.xlsx", result.FileID)
	assert.Equal(t, "folder-ELEVENIQ", result.FolderID)
	assert.Equal(t, 1, api.folderCreates)
	assert.Equal(t, 1, api.fileCreates)
}

func TestSyncUpdatesExistingFileInPlace(t *testing.T) {
	api := newFakeAPI()
	api.folders["ELEVENIQ"] = "folder-1"
	api.files["folder-1/all_data.xlsx"] = "file-1"

	s := newSynchronizerWithAPI(api, "ELEVENIQ", "", testutil.TestLogger(t))

	result, err := s.Sync(context.Background(), "/tmp/all_data.xlsx")
	require.NoError(t, err)

	// Same identity, new content: no duplicate file, no new folder.
	assert.False(t, result.Created)
	assert.Equal(t, "file-1", result.FileID)
	assert.Equal(t, 0, api.folderCreates)
	assert.Equal(t, 0, api.fileCreates)
	assert.Equal(t, 1, api.fileUpdates)
}

func TestSyncReusesResolvedFolder(t *testing.T) {
	api := newFakeAPI()
	s := newSynchronizerWithAPI(api, "ELEVENIQ", "", testutil.TestLogger(t))

	_, err := s.Sync(context.Background(), "/tmp/all_data.xlsx")
	require.NoError(t, err)
	_, err = s.Sync(context.Background(), "/tmp/pipeline_log.csv")
	require.NoError(t, err)

	assert.Equal(t, 1, api.folderCreates, "second sync must reuse the folder ID")
}

func TestSyncRepeatedRunKeepsFileIdentity(t *testing.T) {
	api := newFakeAPI()
	s := newSynchronizerWithAPI(api, "ELEVENIQ", "", testutil.TestLogger(t))

	first, err := s.Sync(context.Background(), "/tmp/all_data.xlsx")
	require.NoError(t, err)

	second, err := s.Sync(context.Background(), "/tmp/all_data.xlsx")
	require.NoError(t, err)

	assert.Equal(t, first.FileID, second.FileID)
	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, 1, api.fileCreates)
	assert.Equal(t, 1, api.fileUpdates)
}

func TestSyncWrapsFailuresAsSyncErrors(t *testing.T) {
	api := newFakeAPI()
	api.findFolderErr = stderrors.New("quota exceeded")

	s := newSynchronizerWithAPI(api, "ELEVENIQ", "", testutil.TestLogger(t))

	_, err := s.Sync(context.Background(), "/tmp/all_data.xlsx")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSync))

	var structured *errors.Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, "ELEVENIQ/all_data.xlsx", structured.Details["target"])
}

func TestSyncUpdateFailure(t *testing.T) {
	api := newFakeAPI()
	api.folders["ELEVENIQ"] = "folder-1"
	api.files["folder-1/all_data.xlsx"] = "file-1"
	api.updateErr = stderrors.New("network reset")

	s := newSynchronizerWithAPI(api, "ELEVENIQ", "", testutil.TestLogger(t))

	_, err := s.Sync(context.Background(), "/tmp/all_data.xlsx")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSync))
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeQuery("O'Brien"))
	assert.Equal(t, "plain", escapeQuery("plain"))
	// Backslashes are escaped before quotes so neither mangles the other.
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
	assert.Equal(t, `a\\\'b`, escapeQuery(`a\'b`))
}
