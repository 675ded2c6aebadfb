package server

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/info", s.handleInfo)

	// Files.
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/files", s.handleListFiles)
	mux.HandleFunc("GET /api/files/{key...}", s.handleDownloadFile)
	mux.HandleFunc("DELETE /api/files/{key...}", s.handleDeleteFile)

	// Anything else under /api is a JSON 404.
	mux.HandleFunc("/api/", s.handleAPINotFound)

	// Browser UI.
	mux.Handle("/ui/", s.uiAssetHandler())
	mux.HandleFunc("/", s.handleUIIndex)

	return s.withCORS(s.withRequestID(s.withRequestLogging(compressResponses(mux))))
}

// compressResponses gzips (or zstd-encodes) responses and marks the ETag of
// an encoded body so it never matches the identity representation.
var compressResponses = func() func(http.Handler) http.HandlerFunc {
	wrap, err := gzhttp.NewWrapper(gzhttp.SuffixETag("-gzip"))
	if err != nil {
		panic(err)
	}
	return wrap
}()
