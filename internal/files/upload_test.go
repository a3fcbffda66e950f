package files_test

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/filesmanager/filestore/localfs"
	"github.com/rise-and-shine/filesmanager/internal/files"
)

func TestUploadFileValidation(t *testing.T) {
	repo := newFakeRepo()
	folder := repo.add(files.FileRecord{OwnerID: ownerID, Name: "docs", Type: files.TypeFolder})
	plain := repo.add(files.FileRecord{OwnerID: ownerID, Name: "a.txt", Type: files.TypeFile})
	foreign := repo.add(files.FileRecord{OwnerID: otherID, Name: "theirs", Type: files.TypeFolder})

	broker := &recordingBroker{}
	uc := files.NewUploadFile(repo, newStore(t), newEnqueuer(broker))

	tests := []struct {
		name     string
		user     string
		in       files.UploadFileInput
		wantCode string
	}{
		{"anonymous", "", files.UploadFileInput{Name: "x", Type: files.TypeFolder}, files.CodeUnauthorized},
		{"missing data", "7", files.UploadFileInput{Name: "x.png", Type: files.TypeImage}, files.CodeMissingData},
		{"bad base64", "7", files.UploadFileInput{Name: "x.png", Type: files.TypeImage, Data: "%%%"}, files.CodeInvalidBase64},
		{"parent missing", "7", files.UploadFileInput{Name: "x", Type: files.TypeFolder, ParentID: 999}, files.CodeParentNotFound},
		{"parent of other user", "7", files.UploadFileInput{Name: "x", Type: files.TypeFolder, ParentID: foreign.ID}, files.CodeParentNotFound},
		{"parent not folder", "7", files.UploadFileInput{Name: "x", Type: files.TypeFolder, ParentID: plain.ID}, files.CodeParentNotFolder},
		{"ok in folder", "7", files.UploadFileInput{Name: "x", Type: files.TypeFolder, ParentID: folder.ID}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := repo.Count(t.Context(), files.Filter{})

			rec, err := uc.Execute(asUser(t.Context(), tt.user), &tt.in)
			after, _ := repo.Count(t.Context(), files.Filter{})

			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, before+1, after)
				assert.Equal(t, folder.ID, rec.ParentID)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errx.AsErrorX(err).Code())
			assert.Equal(t, before, after, "rejected uploads must not create records")
		})
	}
	assert.Empty(t, broker.messages())
}

func TestUploadFolder(t *testing.T) {
	repo := newFakeRepo()
	broker := &recordingBroker{}
	uc := files.NewUploadFile(repo, newStore(t), newEnqueuer(broker))

	rec, err := uc.Execute(asUser(t.Context(), "7"), &files.UploadFileInput{Name: "photos", Type: files.TypeFolder})
	require.NoError(t, err)

	assert.Equal(t, files.TypeFolder, rec.Type)
	assert.Nil(t, rec.LocalPath)
	assert.Equal(t, int64(ownerID), rec.OwnerID)
	assert.Empty(t, broker.messages())
}

func TestUploadImageEnqueuesJob(t *testing.T) {
	repo := newFakeRepo()
	store := newStore(t)
	broker := &recordingBroker{}
	uc := files.NewUploadFile(repo, store, newEnqueuer(broker))

	data := []byte("not really a png")
	rec, err := uc.Execute(asUser(t.Context(), "7"), &files.UploadFileInput{
		Name: "cat.png",
		Type: files.TypeImage,
		Data: base64.StdEncoding.EncodeToString(data),
	})
	require.NoError(t, err)
	require.NotNil(t, rec.LocalPath)
	assert.Equal(t, rec.LocalPath, repo.byID(rec.ID).LocalPath)

	blob, err := store.Get(t.Context(), *rec.LocalPath)
	require.NoError(t, err)
	defer blob.Content.Close()
	stored, err := io.ReadAll(blob.Content)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	msgs := broker.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, files.OpGenerateThumbnails, msgs[0].OperationID)
	assert.Equal(t, "generate-thumbnails:1", msgs[0].IdempotencyKey)

	var job files.ThumbnailJob
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &job))
	assert.Equal(t, files.ThumbnailJob{FileID: rec.ID, OwnerID: ownerID}, job)
}

func TestUploadPlainFileDoesNotEnqueue(t *testing.T) {
	broker := &recordingBroker{}
	uc := files.NewUploadFile(newFakeRepo(), newStore(t), newEnqueuer(broker))

	rec, err := uc.Execute(asUser(t.Context(), "7"), &files.UploadFileInput{
		Name: "notes.txt",
		Type: files.TypeFile,
		Data: base64.StdEncoding.EncodeToString([]byte("hello")),
	})
	require.NoError(t, err)
	assert.NotNil(t, rec.LocalPath)
	assert.Empty(t, broker.messages())
}

func TestUploadNameWithUnusualExtension(t *testing.T) {
	repo := newFakeRepo()
	store := newStore(t)
	uc := files.NewUploadFile(repo, store, newEnqueuer(&recordingBroker{}))

	rec, err := uc.Execute(asUser(t.Context(), "7"), &files.UploadFileInput{
		Name: "report.v1\\final",
		Type: files.TypeFile,
		Data: base64.StdEncoding.EncodeToString([]byte("v1")),
	})
	require.NoError(t, err)
	assert.Equal(t, "report.v1\\final", rec.Name)

	stored := repo.byID(rec.ID)
	require.NotNil(t, stored.LocalPath)
	assert.NotContains(t, *stored.LocalPath, `\`)

	exists, err := store.Exists(t.Context(), *stored.LocalPath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUploadSurvivesEnqueueFailure(t *testing.T) {
	repo := newFakeRepo()
	broker := &recordingBroker{publishErr: errx.New("broker down")}
	uc := files.NewUploadFile(repo, newStore(t), newEnqueuer(broker))

	rec, err := uc.Execute(asUser(t.Context(), "7"), &files.UploadFileInput{
		Name: "cat.png",
		Type: files.TypeImage,
		Data: base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
	})
	require.NoError(t, err)
	assert.NotNil(t, repo.byID(rec.ID).LocalPath)
}

func TestUploadBlobFailureLeavesNoPath(t *testing.T) {
	repo := newFakeRepo()
	store := &flakyStore{FileStore: newStore(t), failSuffixes: []string{".png"}}
	broker := &recordingBroker{}
	uc := files.NewUploadFile(repo, store, newEnqueuer(broker))

	_, err := uc.Execute(asUser(t.Context(), "7"), &files.UploadFileInput{
		Name: "cat.png",
		Type: files.TypeImage,
		Data: base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
	})
	require.Error(t, err)

	recs, _ := repo.List(t.Context(), files.Filter{})
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].LocalPath)
	assert.Empty(t, broker.messages())
}

func TestUploadMetadataFailureRemovesBlob(t *testing.T) {
	repo := newFakeRepo()
	repo.updateErr = errx.New("db down")
	root := t.TempDir()
	store, err := localfs.New(localfs.Config{Root: root})
	require.NoError(t, err)
	uc := files.NewUploadFile(repo, store, newEnqueuer(&recordingBroker{}))

	_, err = uc.Execute(asUser(t.Context(), "7"), &files.UploadFileInput{
		Name: "cat.png",
		Type: files.TypeImage,
		Data: base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
	})
	require.Error(t, err)

	recs, _ := repo.List(t.Context(), files.Filter{})
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].LocalPath)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "orphan blob must be deleted")
}
