package files_test

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/filesmanager/filestore"
	"github.com/rise-and-shine/filesmanager/internal/files"
)

func TestResolveContent(t *testing.T) {
	repo := newFakeRepo()
	store := newStore(t)

	original := []byte("original bytes")
	private := storeImage(t, repo, store, original)
	_, err := store.Upload(t.Context(), files.DerivedPath(*private.LocalPath, 250), bytes.NewReader([]byte("thumb 250")))
	require.NoError(t, err)

	public := repo.add(files.FileRecord{OwnerID: otherID, Name: "p.png", Type: files.TypeImage, IsPublic: true, LocalPath: private.LocalPath})
	folder := repo.add(files.FileRecord{OwnerID: ownerID, Name: "dir", Type: files.TypeFolder})
	pending := repo.add(files.FileRecord{OwnerID: ownerID, Name: "p.txt", Type: files.TypeFile})

	uc := files.NewResolveContent(repo, store)

	tests := []struct {
		name     string
		user     string
		in       files.ResolveContentInput
		wantBody string
		wantCode string
	}{
		{"owner gets requested size", "7", files.ResolveContentInput{ID: private.ID, Size: "250"}, "thumb 250", ""},
		{"missing size falls back to original", "7", files.ResolveContentInput{ID: private.ID, Size: "100"}, string(original), ""},
		{"unsupported size falls back to original", "7", files.ResolveContentInput{ID: private.ID, Size: "123"}, string(original), ""},
		{"size that is not a number", "7", files.ResolveContentInput{ID: private.ID, Size: "abc"}, string(original), ""},
		{"negative size", "7", files.ResolveContentInput{ID: private.ID, Size: "-3"}, string(original), ""},
		{"zero size", "7", files.ResolveContentInput{ID: private.ID, Size: "0"}, string(original), ""},
		{"default size is 500", "7", files.ResolveContentInput{ID: private.ID}, string(original), ""},
		{"public for anonymous", "", files.ResolveContentInput{ID: public.ID, Size: "250"}, "thumb 250", ""},
		{"private for anonymous", "", files.ResolveContentInput{ID: private.ID}, "", files.CodeFileNotFound},
		{"private for other user", "8", files.ResolveContentInput{ID: private.ID}, "", files.CodeFileNotFound},
		{"unknown id", "7", files.ResolveContentInput{ID: 999}, "", files.CodeFileNotFound},
		{"folder", "7", files.ResolveContentInput{ID: folder.ID}, "", files.CodeFolderHasNoContent},
		{"no content yet", "7", files.ResolveContentInput{ID: pending.ID}, "", files.CodeFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := uc.Execute(asUser(t.Context(), tt.user), &tt.in)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errx.AsErrorX(err).Code())
				return
			}
			require.NoError(t, err)
			defer content.Content.Close()

			body, err := io.ReadAll(content.Content)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(body))
			assert.Equal(t, filestore.ContentTypePNG, content.ContentType)
		})
	}
}

func TestResolveContentHidesPrivateFiles(t *testing.T) {
	repo := newFakeRepo()
	store := newStore(t)
	private := storeImage(t, repo, store, []byte("secret"))
	uc := files.NewResolveContent(repo, store)
	ctx := asUser(t.Context(), "8")

	_, hiddenErr := uc.Execute(ctx, &files.ResolveContentInput{ID: private.ID})
	_, missingErr := uc.Execute(ctx, &files.ResolveContentInput{ID: private.ID + 100})

	hidden, missing := errx.AsErrorX(hiddenErr), errx.AsErrorX(missingErr)
	assert.Equal(t, missing.Code(), hidden.Code())
	assert.Equal(t, missing.Type(), hidden.Type())
}

func TestContentHandlerSizeQuery(t *testing.T) {
	repo := newFakeRepo()
	store := newStore(t)

	original := []byte("original bytes")
	rec := storeImage(t, repo, store, original)
	_, err := store.Upload(t.Context(), files.DerivedPath(*rec.LocalPath, 250), bytes.NewReader([]byte("thumb 250")))
	require.NoError(t, err)
	public := repo.add(files.FileRecord{OwnerID: ownerID, Name: "p.png", Type: files.TypeImage, IsPublic: true, LocalPath: rec.LocalPath})

	app := fiber.New()
	app.Get("/files/:id/data", files.ContentHandler(files.NewResolveContent(repo, store)))

	tests := []struct {
		query    string
		wantBody string
	}{
		{"?size=250", "thumb 250"},
		{"?size=abc", string(original)},
		{"?size=-3", string(original)},
		{"?size=", string(original)},
		{"", string(original)},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/files/"+strconv.FormatInt(public.ID, 10)+"/data"+tt.query, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantBody, string(body))
			assert.Equal(t, filestore.ContentTypePNG, resp.Header.Get(fiber.HeaderContentType))
		})
	}
}
