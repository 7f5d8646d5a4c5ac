package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/inthetow/backend/pkg/errors"
)

func TestDiskStore_StoreAndSignedURL(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080/api/media/", "secret")
	require.NoError(t, err)
	now := time.Unix(1_800_000_000, 0)
	store.now = func() time.Time { return now }

	token, err := store.Store(context.Background(), []byte("\x89PNG..."), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(token, ".png"))

	path, err := store.Path(token)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG..."), data)

	raw, err := store.URLFor(context.Background(), token, time.Hour)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/api/media/"+token, u.Path)

	exp, sig := u.Query().Get("exp"), u.Query().Get("sig")
	assert.NoError(t, store.Verify(token, exp, sig))

	tampered := "0" + sig[1:]
	if sig[0] == '0' {
		tampered = "1" + sig[1:]
	}
	assert.True(t, apperrors.IsType(store.Verify(token, exp, tampered), apperrors.ErrorTypeForbidden))
	assert.True(t, apperrors.IsType(store.Verify(token, "soon", sig), apperrors.ErrorTypeForbidden))

	now = now.Add(2 * time.Hour)
	assert.True(t, apperrors.IsType(store.Verify(token, exp, sig), apperrors.ErrorTypeForbidden))
}

func TestDiskStore_RejectsTraversal(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "http://x", "secret")
	require.NoError(t, err)

	_, err = store.Path("../../etc/passwd")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = store.URLFor(context.Background(), "../secret", time.Minute)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestNewDiskStore_RequiresKey(t *testing.T) {
	_, err := NewDiskStore(t.TempDir(), "http://x", "")
	assert.Error(t, err)
}

func testAWSConfig() aws.Config {
	return aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
	}
}

func TestS3Store_StoreUploadsUnderPrefix(t *testing.T) {
	var puts atomic.Int32
	var gotPath, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts.Add(1)
			gotPath = r.URL.Path
			gotType = r.Header.Get("Content-Type")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewS3Store(testAWSConfig(), "inthetow-photos", srv.URL)

	token, err := store.Store(context.Background(), []byte("jpegdata"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, int32(1), puts.Load())
	assert.Equal(t, "/inthetow-photos/photos/"+token, gotPath)
	assert.Equal(t, "image/jpeg", gotType)
}

func TestS3Store_URLForPresigns(t *testing.T) {
	store := NewS3Store(testAWSConfig(), "inthetow-photos", "http://minio.local:9000")

	raw, err := store.URLFor(context.Background(), "abc.jpg", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/inthetow-photos/photos/abc.jpg", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
