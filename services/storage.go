package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxPictureSize is the largest accepted profile picture.
const MaxPictureSize = 5 << 20

var (
	// ErrPictureTooLarge is returned for uploads over MaxPictureSize.
	ErrPictureTooLarge = errors.New("picture must be at most 5MB")

	// ErrPictureType is returned for uploads that are not JPEG, PNG or GIF.
	ErrPictureType = errors.New("picture must be a JPEG, PNG or GIF image")
)

var pictureExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// PictureStore keeps uploaded profile pictures on disk.
type PictureStore struct {
	dir string
}

func NewPictureStore(dir string) *PictureStore {
	return &PictureStore{dir: dir}
}

// Save stores the image read from r and returns its relative path.
func (s *PictureStore) Save(userID uint, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPictureSize+1))
	if err != nil {
		return "", fmt.Errorf("read picture: %w", err)
	}
	if len(data) > MaxPictureSize {
		return "", ErrPictureTooLarge
	}
	ext, ok := pictureExtensions[http.DetectContentType(data)]
	if !ok {
		return "", ErrPictureType
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := fmt.Sprintf("user-%d-%s%s", userID, uuid.NewString(), ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write picture: %w", err)
	}
	return path.Join("pictures", name), nil
}

// Open returns the file stored at rel, as returned by Save.
func (s *PictureStore) Open(rel string) (*os.File, error) {
	name := path.Base(rel)
	if name != strings.TrimPrefix(rel, "pictures/") || name == "." || name == "/" {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(s.dir, name))
}
