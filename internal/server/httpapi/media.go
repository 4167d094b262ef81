package httpapi

import (
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/media"
	"github.com/and161185/brainboard/internal/model"
)

type uploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// handleUpload stores the request body at boards/{id}/{name}.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	_, boardID, err := a.authorize(r, model.RoleEditor)
	if err != nil {
		a.respondErr(w, "upload", err)
		return
	}
	p, err := media.Clean(path.Join("boards", boardID.String(), mux.Vars(r)["name"]))
	if err != nil || path.Dir(p) != "boards/"+boardID.String() {
		respondError(w, http.StatusBadRequest, "bad object name")
		return
	}
	n, err := a.cfg.Media.Put(p, r.Body)
	if err != nil {
		a.respondErr(w, "upload", err)
		return
	}
	u, err := a.cfg.Media.PublicURL(p)
	if err != nil {
		a.respondErr(w, "upload", err)
		return
	}
	a.log.Info("media stored", zap.String("path", p), zap.Int64("size", n))
	respondJSON(w, http.StatusCreated, uploadResponse{Path: p, URL: u, Size: n})
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	f, err := a.cfg.Media.Open(strings.TrimPrefix(r.URL.Path, "/media/"))
	if err != nil {
		a.respondErr(w, "download", err)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}
