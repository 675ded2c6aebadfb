package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"filedrop/internal/objectstore"
)

const (
	allowRemoteEnvKey = "FILEDROP_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 5 * time.Minute
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second

	defaultMaxUploadBytes     = 100 << 20 // 100 MiB
	defaultMultipartMaxMemory = 32 << 20  // 32 MiB
)

// UploadOptions bounds upload requests. Zero values select defaults;
// MaxConcurrent of zero means unlimited.
type UploadOptions struct {
	MaxUploadBytes     int64
	MultipartMaxMemory int64
	AllowedMediaTypes  []string
	MaxConcurrent      int
}

// Server wraps HTTP handlers for the filedrop API and UI.
type Server struct {
	addr    string
	backend string
	version string
	files   *FileService
	logger  *slog.Logger

	maxUploadBytes     int64
	multipartMaxMemory int64
	uploadLimiter      chan struct{}
}

// New creates a new server instance.
func New(addr string, st objectstore.Store, backend string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:               addr,
		backend:            backend,
		version:            "dev",
		files:              NewFileService(st),
		logger:             logger,
		maxUploadBytes:     defaultMaxUploadBytes,
		multipartMaxMemory: defaultMultipartMaxMemory,
	}
}

// ConfigureUploads applies upload limits and media-type policy.
func (s *Server) ConfigureUploads(opts UploadOptions) {
	if opts.MaxUploadBytes > 0 {
		s.maxUploadBytes = opts.MaxUploadBytes
	}
	if opts.MultipartMaxMemory > 0 {
		s.multipartMaxMemory = opts.MultipartMaxMemory
	}
	s.files.ConfigurePolicy(opts.AllowedMediaTypes)
	s.uploadLimiter = nil
	if opts.MaxConcurrent > 0 {
		s.uploadLimiter = make(chan struct{}, opts.MaxConcurrent)
	}
}

// SetVersion sets the version reported by /api/info.
func (s *Server) SetVersion(version string) {
	if version = strings.TrimSpace(version); version != "" {
		s.version = version
	}
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// ListenAndServe serves until ctx is cancelled, then gives in-flight
// requests up to shutdownTimeout to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.log().Info("starting server", "addr", listener.Addr().String(), "backend", s.backend, "version", s.version)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(listener) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}
