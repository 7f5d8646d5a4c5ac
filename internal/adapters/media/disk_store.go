package media

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inthetow/backend/internal/domain/providers"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.[a-z]{3,4}$`)

// DiskStore keeps photos on local disk and serves them through signed URLs
type DiskStore struct {
	dir        string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

var _ providers.MediaStore = (*DiskStore)(nil)

// NewDiskStore creates the directory if needed
func NewDiskStore(dir, baseURL, signingKey string) (*DiskStore, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("media signing key is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &DiskStore{
		dir:        dir,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		signingKey: []byte(signingKey),
		now:        time.Now,
	}, nil
}

// Store writes data under a fresh token
func (s *DiskStore) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	token := NewToken(contentType)
	if err := os.WriteFile(filepath.Join(s.dir, token), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media: %w", err)
	}
	return token, nil
}

// URLFor returns a URL for token that stops verifying after ttl
func (s *DiskStore) URLFor(_ context.Context, token string, ttl time.Duration) (string, error) {
	if !tokenPattern.MatchString(token) {
		return "", apperrors.NewValidationError("invalid media token")
	}
	exp := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("exp", exp)
	q.Set("sig", s.sign(token, exp))
	return fmt.Sprintf("%s/%s?%s", s.baseURL, token, q.Encode()), nil
}

// Verify checks a signature produced by URLFor
func (s *DiskStore) Verify(token, exp, sig string) error {
	if !tokenPattern.MatchString(token) {
		return apperrors.NewNotFoundError("media not found")
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return apperrors.NewForbiddenError("invalid media signature")
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(token, exp))) {
		return apperrors.NewForbiddenError("invalid media signature")
	}
	if s.now().Unix() > expUnix {
		return apperrors.NewForbiddenError("media link expired")
	}
	return nil
}

// Path returns the file backing token
func (s *DiskStore) Path(token string) (string, error) {
	if !tokenPattern.MatchString(token) {
		return "", apperrors.NewNotFoundError("media not found")
	}
	return filepath.Join(s.dir, token), nil
}

func (s *DiskStore) sign(token, exp string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(token))
	mac.Write([]byte{'|'})
	mac.Write([]byte(exp))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewToken returns a random token carrying an extension for contentType
func NewToken(contentType string) string {
	return uuid.New().String() + extension(contentType)
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}
