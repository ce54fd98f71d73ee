package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"XMarketingAPI/models"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	ftypes "github.com/h2non/filetype/types"
)

// allowedMedia is the set of upload types the X gateway can publish,
// validated by magic-number signature rather than extension or headers.
var allowedMedia = map[string]models.MediaType{
	"image/jpeg": models.MediaImage,
	"image/png":  models.MediaImage,
	"image/gif":  models.MediaImage,
	"image/webp": models.MediaImage,
	"video/mp4":  models.MediaVideo,
}

// StorageService stores uploaded media on local disk and hands back URLs the
// publishing gateway can later resolve.
type StorageService struct {
	uploadDir    string
	baseURL      string
	maxImageSize int64
	maxVideoSize int64
}

func NewStorageService(uploadDir, baseURL string, maxImageSize, maxVideoSize int64) (*StorageService, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, err
	}

	return &StorageService{
		uploadDir:    uploadDir,
		baseURL:      baseURL,
		maxImageSize: maxImageSize,
		maxVideoSize: maxVideoSize,
	}, nil
}

func sniffType(file multipart.File) (ftypes.Type, error) {
	// filetype needs at least 262 bytes of header.
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return ftypes.Unknown, fmt.Errorf("reading file header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return ftypes.Unknown, fmt.Errorf("resetting file reader: %w", err)
	}

	return filetype.Match(buf[:n])
}

func (s *StorageService) SaveFile(file multipart.File, header *multipart.FileHeader, userID string) (*models.Media, error) {
	if header.Size == 0 {
		return nil, fmt.Errorf("empty files are not allowed")
	}

	kind, err := sniffType(file)
	if err != nil {
		return nil, err
	}

	detectedMIME := kind.MIME.Value
	mediaType, ok := allowedMedia[detectedMIME]
	if !ok {
		return nil, fmt.Errorf("unsupported media type %q; accepted: jpeg, png, gif, webp, mp4", detectedMIME)
	}

	maxSize := s.maxImageSize
	if mediaType == models.MediaVideo {
		maxSize = s.maxVideoSize
	}
	if header.Size > maxSize {
		return nil, fmt.Errorf("file size %d exceeds the %d MB limit for %s uploads",
			header.Size, maxSize/(1<<20), mediaType)
	}

	// The stored name is random; the original filename is untrusted input
	// and only its detected type matters.
	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, err
	}
	filename := hex.EncodeToString(randomBytes) + "." + kind.Extension

	userDir := filepath.Join(s.uploadDir, userID)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return nil, err
	}

	filePath := filepath.Join(userDir, filename)
	dst, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	// Limit the copy so a tampered Content-Length cannot smuggle extra bytes.
	written, err := io.Copy(dst, io.LimitReader(file, maxSize+1))
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	if written > maxSize {
		os.Remove(filePath)
		return nil, fmt.Errorf("file stream exceeded the %d MB limit", maxSize/(1<<20))
	}

	return &models.Media{
		ID:        uuid.New().String(),
		UserID:    userID,
		Filename:  filename,
		Path:      filePath,
		URL:       fmt.Sprintf("%s/uploads/%s/%s", strings.TrimRight(s.baseURL, "/"), userID, filename),
		Type:      mediaType,
		Size:      written,
		MimeType:  detectedMIME,
		CreatedAt: time.Now(),
	}, nil
}

func (s *StorageService) DeleteFile(media *models.Media) error {
	return os.Remove(media.Path)
}
