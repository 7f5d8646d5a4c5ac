package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inthetow/backend/internal/domain/providers"
	apperrors "github.com/inthetow/backend/pkg/errors"
)

// Photo limits
const (
	MaxReviewPhotos        = 5
	MaxPhotoBytes          = 10 << 20
	photoUploadConcurrency = 3
)

// PhotoUpload is one uploaded image before it is stored
type PhotoUpload struct {
	Filename string
	Data     []byte
}

// sniffImage returns the detected content type of an image upload
func sniffImage(p PhotoUpload) (string, error) {
	if len(p.Data) == 0 {
		return "", apperrors.NewValidationError(fmt.Sprintf("photo %q is empty", p.Filename))
	}
	if len(p.Data) > MaxPhotoBytes {
		return "", apperrors.NewValidationError(fmt.Sprintf("photo %q exceeds %d MiB", p.Filename, MaxPhotoBytes>>20))
	}
	contentType := http.DetectContentType(p.Data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperrors.NewValidationError(fmt.Sprintf("photo %q is not an image", p.Filename))
	}
	return contentType, nil
}

func validatePhotos(photos []PhotoUpload) ([]string, error) {
	if len(photos) > MaxReviewPhotos {
		return nil, apperrors.NewValidationError(fmt.Sprintf("at most %d photos are allowed", MaxReviewPhotos))
	}
	types := make([]string, len(photos))
	for i, p := range photos {
		ct, err := sniffImage(p)
		if err != nil {
			return nil, err
		}
		types[i] = ct
	}
	return types, nil
}

// storePhotos uploads in parallel and returns tokens in input order.
// The first failure cancels the remaining uploads.
func storePhotos(ctx context.Context, store providers.MediaStore, photos []PhotoUpload, types []string) ([]string, error) {
	tokens := make([]string, len(photos))
	if len(photos) == 0 {
		return tokens, nil
	}
	if store == nil {
		return nil, apperrors.NewInternalError("media storage is not configured", nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(photoUploadConcurrency)
	for i := range photos {
		g.Go(func() error {
			token, err := store.Store(gctx, photos[i].Data, types[i])
			if err != nil {
				return apperrors.NewExternalError("failed to store photo", err)
			}
			tokens[i] = token
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// photoURLs resolves media tokens; unresolved tokens are skipped
func photoURLs(ctx context.Context, store providers.MediaStore, tokens []string, ttl time.Duration) []string {
	if store == nil || len(tokens) == 0 {
		return nil
	}
	urls := make([]string, 0, len(tokens))
	for _, token := range tokens {
		u, err := store.URLFor(ctx, token, ttl)
		if err != nil {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}
