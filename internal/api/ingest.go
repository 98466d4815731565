package api

import (
	stderrors "errors"
	"net/http"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
)

const multipartMemory = 8 << 20

// IngestHandler accepts a multipart upload with the CSV in the "file" field.
func (s *Server) IngestHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}
	defer r.Body.Close()

	err := r.ParseMultipartForm(multipartMemory)
	if err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
		return nil, uploadError(err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, uploadError(err)
	}
	defer file.Close()

	s.log.Info("Accepted a new upload", "file", header.Filename, "size", header.Size)

	return s.ingest.Ingest(r.Context(), header.Filename, file)
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return &APIError{Code: PayloadTooLarge, Description: "upload exceeds the size limit"}
	}
	if stderrors.Is(err, http.ErrMissingFile) {
		return errors.MalformedInput("no file supplied")
	}
	return errors.New(errors.CodeMalformedInput, "couldn't read upload", err)
}

func (s *Server) ListIngestedHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	return s.ingest.List(r.Context())
}

func (s *Server) GetIngestedHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	return s.ingest.Get(r.Context(), r.PathValue("batchID"))
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	return map[string]string{"status": "ok", "id": s.config.ID}, nil
}

func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	if s.health == nil {
		return map[string]bool{"healthy": true}, nil
	}

	status := s.health.GetHealthStatus()
	if !status.Healthy {
		return nil, &APIError{Code: NotReady, Description: "a dependency is unavailable"}
	}

	return status, nil
}
