package flagkit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// FileSource serves configuration from a local file for development. Each
// poll rereads the file; the body is returned only when its content changed
// since the last poll of the same session.
type FileSource struct {
	path string

	mu     sync.Mutex
	hashes map[string]uint64 // token -> hash of the content delivered before it was issued
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, hashes: make(map[string]uint64)}
}

func (s *FileSource) StartSession(ctx context.Context, params SessionParams) (string, error) {
	if _, err := os.Stat(s.path); err != nil {
		return "", &RemoteFetchError{Op: "StartSession", Err: err}
	}
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[token] = 0
	return token, nil
}

func (s *FileSource) GetLatest(ctx context.Context, token string) (LatestConfiguration, error) {
	if err := ctx.Err(); err != nil {
		return LatestConfiguration{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.hashes[token]
	if !ok {
		return LatestConfiguration{}, &RemoteFetchError{Op: "GetLatest", Code: "BadRequestException", Err: fmt.Errorf("unknown configuration token")}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return LatestConfiguration{}, &RemoteFetchError{Op: "GetLatest", Err: err}
	}
	sum := xxhash.Sum64(data)

	// tokens are single use
	delete(s.hashes, token)
	next := uuid.NewString()
	s.hashes[next] = sum

	latest := LatestConfiguration{NextToken: next, ContentType: contentTypeForPath(s.path)}
	if sum != last || last == 0 {
		latest.Body = data
	}
	return latest, nil
}

func contentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "application/x-yaml"
	default:
		return "application/json"
	}
}
