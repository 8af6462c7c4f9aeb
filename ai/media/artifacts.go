package media

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/lithammer/shortuuid/v4"
)

// ArtifactStore writes generated media under the data directory so the server
// can serve it over the public media route.
type ArtifactStore struct {
	dir       string
	publicURL string // public base URL, e.g. https://aura.example.com
}

// NewArtifactStore creates an artifact store rooted at dir.
func NewArtifactStore(dir, publicURL string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &ArtifactStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir returns the directory artifacts are written to.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Save writes the artifact with a short random name and returns the filename
// and its public URL (empty when no public base URL is configured).
func (s *ArtifactStore) Save(data []byte, mimeType string) (string, string, error) {
	name := shortuuid.New() + ExtensionFor(mimeType)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o640); err != nil {
		return "", "", fmt.Errorf("failed to write artifact: %w", err)
	}

	publicURL := ""
	if s.publicURL != "" {
		publicURL = s.publicURL + "/media/" + name
	}
	return name, publicURL, nil
}

// ExtensionFor maps a MIME type to a file extension, preferring the short
// conventional forms for the media types the pipeline produces.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
