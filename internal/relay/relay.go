// Package relay is the server side of the upload endpoint. It accepts CSV
// text as JSON, stores it as an object and answers with the object key.
// Every response carries permissive CORS headers so browser clients on any
// origin can call it.
package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Path is the route the relay is mounted on.
const Path = "/api/upload"

const maxBodyBytes = 32 << 20

// Request is the accepted body. CSVData is preferred over CSVBase64; an
// empty field counts as absent.
type Request struct {
	CSVData   string `json:"csv_data"`
	CSVBase64 string `json:"csv_base64"`
}

// Response is the success body.
type Response struct {
	Message string `json:"message"`
	Key     string `json:"key"`
	Bytes   int    `json:"bytes"`
}

// ErrorResponse is the failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Relay handles upload requests.
type Relay struct {
	store  ObjectStore
	logger *zap.Logger
	now    func() time.Time
}

// New creates a relay writing to store.
func New(store ObjectStore, logger *zap.Logger) (*Relay, error) {
	if store == nil {
		return nil, fmt.Errorf("object store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{store: store, logger: logger, now: time.Now}, nil
}

// Register mounts the relay and its CORS policy on e.
func (r *Relay) Register(e *echo.Echo) {
	g := e.Group(Path, allowAnyOrigin, middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	g.POST("", r.Handle)
	g.OPTIONS("", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
}

// allowAnyOrigin sets the CORS origin header on every response. The CORS
// middleware skips it when a request carries no Origin.
func allowAnyOrigin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
		return next(c)
	}
}

// Handle processes one upload.
func (r *Relay) Handle(c echo.Context) error {
	data, err := decode(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		uploadsTotal.WithLabelValues("bad_request").Inc()
		r.logger.Debug("rejecting upload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	key := r.objectKey()
	if err := r.store.Put(c.Request().Context(), key, data); err != nil {
		uploadsTotal.WithLabelValues("store_error").Inc()
		r.logger.Error("storing upload failed", zap.String("key", key), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}

	uploadsTotal.WithLabelValues("stored").Inc()
	uploadBytes.Observe(float64(len(data)))
	r.logger.Info("upload stored", zap.String("key", key), zap.Int("bytes", len(data)))

	return c.JSON(http.StatusOK, Response{
		Message: "CSV uploaded successfully",
		Key:     key,
		Bytes:   len(data),
	})
}

// badRequest is a client error whose text is sent verbatim.
type badRequest string

func (b badRequest) Error() string { return string(b) }

const (
	errMissingCSV    badRequest = "Missing CSV data"
	errInvalidBase64 badRequest = "Invalid base64 CSV data"
)

func decode(body io.Reader) ([]byte, error) {
	var req Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, errMissingCSV
	}
	switch {
	case req.CSVData != "":
		return []byte(req.CSVData), nil
	case req.CSVBase64 != "":
		data, err := base64.StdEncoding.DecodeString(req.CSVBase64)
		if err != nil {
			return nil, errInvalidBase64
		}
		return data, nil
	default:
		return nil, errMissingCSV
	}
}

func (r *Relay) objectKey() string {
	ts := r.now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("exports/motor-data-%s-%s.csv", ts, uuid.NewString()[:8])
}
