package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"filedrop/internal/api"
	"filedrop/internal/models"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		if err := r.ParseMultipartForm(s.multipartMaxMemory); err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("No file provided"), ErrCodeMissingRequired))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
			return
		}

		result, err := s.files.Upload(r.Context(), UploadInput{
			Name:        header.Filename,
			ContentType: strings.TrimSpace(header.Header.Get("Content-Type")),
			Data:        data,
		})
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		stored := result.File
		if result.Duplicate {
			s.log().Debug("duplicate upload rejected", "name", header.Filename, "existing_key", stored.Key)
			s.writeJSON(w, http.StatusConflict, api.UploadResponse{
				Success:   false,
				Message:   "This file already exists in storage",
				File:      &stored,
				Code:      "conflict",
				ErrorCode: ErrCodeDuplicateFile,
			})
			return
		}

		s.log().Info("file uploaded", "key", stored.Key, "size", stored.Size, "content_type", stored.ContentType)
		s.writeJSON(w, http.StatusCreated, api.UploadResponse{
			Success: true,
			Message: "File uploaded successfully",
			File:    &stored,
		})
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.files.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if files == nil {
		files = []models.FileInfo{}
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse{Files: files, Count: len(files)})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKeyOrBadRequest(w, r)
	if !ok {
		return
	}

	content, err := s.files.Open(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer content.Body.Close()

	h := w.Header()
	h.Set("Content-Type", content.ContentType)
	h.Set("Content-Disposition", contentDisposition(content.Name))
	if content.ETag != "" {
		h.Set("ETag", strconv.Quote(content.ETag))
	}
	if content.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(content.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, content.Body); err != nil && !errors.Is(err, r.Context().Err()) {
		s.log().Warn("download interrupted", "key", key, "error", err)
	}
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKeyOrBadRequest(w, r)
	if !ok {
		return
	}

	if err := s.files.Delete(r.Context(), key); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.log().Info("file deleted", "key", key)
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Success: true, Message: "File deleted successfully"})
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("Not found"), ErrCodeRouteNotFound))
}

var dispositionEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func contentDisposition(name string) string {
	return `attachment; filename="` + dispositionEscaper.Replace(name) + `"`
}
