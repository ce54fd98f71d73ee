package services

import (
	"bytes"
	"mime/multipart"
	"os"
	"testing"

	"XMarketingAPI/models"

	"github.com/stretchr/testify/require"
)

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func uploadFixture(data []byte, name string) (multipart.File, *multipart.FileHeader) {
	return memFile{bytes.NewReader(data)}, &multipart.FileHeader{
		Filename: name,
		Size:     int64(len(data)),
	}
}

var testPNG = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

func newTestStorage(t *testing.T) *StorageService {
	t.Helper()
	storage, err := NewStorageService(t.TempDir(), "http://localhost:8080/", 1<<20, 4<<20)
	require.NoError(t, err)
	return storage
}

func TestSaveFileStoresDetectedType(t *testing.T) {
	storage := newTestStorage(t)
	file, header := uploadFixture(testPNG, "anything.bin")

	media, err := storage.SaveFile(file, header, "user-1")
	require.NoError(t, err)
	require.Equal(t, models.MediaImage, media.Type)
	require.Equal(t, "image/png", media.MimeType)
	require.Equal(t, int64(len(testPNG)), media.Size)

	// The stored name comes from the detected type, never the upload name.
	require.NotContains(t, media.Filename, "anything")
	require.Contains(t, media.Filename, ".png")
	require.Equal(t, "http://localhost:8080/uploads/user-1/"+media.Filename, media.URL)

	written, err := os.ReadFile(media.Path)
	require.NoError(t, err)
	require.Equal(t, testPNG, written)

	require.NoError(t, storage.DeleteFile(media))
	_, err = os.Stat(media.Path)
	require.True(t, os.IsNotExist(err))
}

func TestSaveFileRejectsUnknownType(t *testing.T) {
	storage := newTestStorage(t)
	file, header := uploadFixture([]byte("#!/bin/sh\nrm -rf /\n"), "innocent.png")

	_, err := storage.SaveFile(file, header, "user-1")
	require.ErrorContains(t, err, "unsupported media type")
}

func TestSaveFileRejectsEmpty(t *testing.T) {
	storage := newTestStorage(t)
	file, header := uploadFixture(nil, "empty.png")

	_, err := storage.SaveFile(file, header, "user-1")
	require.ErrorContains(t, err, "empty")
}

func TestSaveFileEnforcesImageLimit(t *testing.T) {
	storage, err := NewStorageService(t.TempDir(), "http://localhost:8080", 16, 4<<20)
	require.NoError(t, err)

	file, header := uploadFixture(append(testPNG, make([]byte, 64)...), "big.png")
	_, err = storage.SaveFile(file, header, "user-1")
	require.ErrorContains(t, err, "exceeds")
}
