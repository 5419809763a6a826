package api

import (
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"
)

func SetupRoutes(handler *Handler, assetsFS fs.FS) *mux.Router {
	router := mux.NewRouter()

	// CORS middleware
	router.Use(corsMiddleware)

	// API routes
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyze", handler.Analyze).Methods("POST")
	api.HandleFunc("/config", handler.GetConfig).Methods("GET")
	api.HandleFunc("/config", handler.UpdateConfig).Methods("POST")
	api.HandleFunc("/downloads", handler.GetDownloads).Methods("GET")
	api.HandleFunc("/downloads", handler.AddDownload).Methods("POST")
	// Registered before the {id} routes so "clear-finished" is not read as an id
	api.HandleFunc("/downloads/clear-finished", handler.ClearFinished).Methods("POST")
	api.HandleFunc("/downloads/{id}", handler.GetDownload).Methods("GET")
	api.HandleFunc("/downloads/{id}", handler.DeleteDownload).Methods("DELETE")
	api.HandleFunc("/downloads/{id}/start", handler.StartDownload).Methods("POST")
	api.HandleFunc("/downloads/{id}/cancel", handler.CancelDownload).Methods("POST")
	api.HandleFunc("/downloads/{id}/pause", handler.PauseDownload).Methods("POST")
	api.HandleFunc("/downloads/{id}/resume", handler.ResumeDownload).Methods("POST")
	api.HandleFunc("/downloads/{id}/retry", handler.RetryDownload).Methods("POST")
	api.HandleFunc("/downloads/{id}/file", handler.DownloadFile).Methods("GET")
	api.HandleFunc("/platforms", handler.GetPlatforms).Methods("GET")
	api.HandleFunc("/system", handler.GetSystemInfo).Methods("GET")
	api.HandleFunc("/version", handler.GetVersion).Methods("GET")

	// Assets (embedded)
	assetsSubFS, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		// Fallback to full path if Sub fails
		assetsHandler := http.FileServer(http.FS(assetsFS))
		router.PathPrefix("/assets/").Handler(http.StripPrefix("/assets/", assetsHandler))
	} else {
		assetsHandler := http.FileServer(http.FS(assetsSubFS))
		router.PathPrefix("/assets/").Handler(http.StripPrefix("/assets/", assetsHandler))
	}

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
