package http

import (
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
)

// NewRouter configures the API routes and the authenticated thumbnail route.
// The manifest route is registered before the segment route so index.m3u8
// never falls through to the segment handler.
func NewRouter(handler *Handler, verifier TokenVerifier, mediaRoot string) *mux.Router {
	auth := RequireAuth(verifier)

	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)
	api.HandleFunc("/video/", handler.ListVideos).Methods("GET")
	api.HandleFunc("/video/", handler.CreateVideo).Methods("POST")
	api.HandleFunc("/genres/", handler.ListGenres).Methods("GET")
	api.HandleFunc("/video/{id}/", handler.GetVideo).Methods("GET")
	api.HandleFunc("/video/{id}/", handler.DeleteVideo).Methods("DELETE")
	api.HandleFunc("/video/{id}/{tier}/index.m3u8", handler.GetManifest).Methods("GET")
	api.HandleFunc("/video/{id}/{tier}/{segment}", handler.GetSegment).Methods("GET")

	thumbnails := http.FileServer(http.Dir(filepath.Join(mediaRoot, "thumbnails")))
	r.PathPrefix("/media/thumbnails/").Handler(
		auth(http.StripPrefix("/media/thumbnails/", thumbnails)))

	return r
}
