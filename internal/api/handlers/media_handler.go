package handlers

import (
	"net/http"
)

// SignedFiles verifies signed media links and resolves them to files on disk.
type SignedFiles interface {
	Verify(token, exp, sig string) error
	Path(token string) (string, error)
}

// MediaHandler serves photos kept by the local disk store
type MediaHandler struct {
	files SignedFiles
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(files SignedFiles) *MediaHandler {
	return &MediaHandler{files: files}
}

// ServeMedia handles GET /api/media/{token}?exp=&sig=
func (h *MediaHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	q := r.URL.Query()
	if err := h.files.Verify(token, q.Get("exp"), q.Get("sig")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	path, err := h.files.Path(token)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, path)
}
