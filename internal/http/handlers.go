package http

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/motorqc/internal/analytics"
	"github.com/fyrsmithlabs/motorqc/internal/export"
	"github.com/fyrsmithlabs/motorqc/internal/record"
	"github.com/fyrsmithlabs/motorqc/internal/store"
)

// previewSize is how many records the export preview shows.
const previewSize = 3

// msgMissingFields is shown to the operator when the form is incomplete.
const msgMissingFields = "Please fill in all required fields"

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "motorqc",
		Version: s.config.Version,
		Records: len(s.store.Records()),
	})
}

func (s *Server) handleListRecords(c echo.Context) error {
	records := s.store.Records()
	return c.JSON(http.StatusOK, RecordsResponse{Records: records, Count: len(records)})
}

func (s *Server) handleAddRecord(c echo.Context) error {
	ctx := c.Request().Context()

	form, uploads, err := s.bindForm(c)
	if err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		return formError(err)
	}

	saved, err := s.saveAudio(c, uploads)
	if err != nil {
		return err
	}
	for _, ref := range saved {
		form.AudioFiles.Set(ref.bucket, ref.file)
	}

	rec, err := record.NewRecord(form, s.config.Now())
	if err != nil {
		s.discardAudio(c, saved)
		return formError(err)
	}

	persisted := true
	if err := s.store.Add(ctx, rec); err != nil {
		if !errors.Is(err, store.ErrPersist) {
			s.discardAudio(c, saved)
			return err
		}
		// The record is in memory; only the durable copy is stale.
		persisted = false
		s.logger.Warn(ctx, "record added but not persisted", zap.String("id", rec.ID), zap.Error(err))
	}

	s.logger.Info(ctx, "record added",
		zap.String("id", rec.ID),
		zap.String("motor_id", rec.MotorID),
		zap.String("status", string(rec.Status)),
		zap.Int("audio_files", rec.AudioFiles.Count()))

	return c.JSON(http.StatusCreated, AddRecordResponse{Record: rec, Persisted: persisted})
}

func formError(err error) error {
	switch {
	case errors.Is(err, record.ErrMissingFields):
		return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields)
	case errors.Is(err, record.ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

// audioUpload is a multipart audio part waiting to be stored.
type audioUpload struct {
	bucket record.RPM
	header *multipart.FileHeader
}

// savedAudio is a stored audio blob not yet owned by a record.
type savedAudio struct {
	bucket record.RPM
	file   *record.FileRef
}

// bindForm reads a record form from JSON or from a multipart body whose
// rpm500..rpm4500 parts carry audio files. Nothing is written yet.
func (s *Server) bindForm(c echo.Context) (record.Form, []audioUpload, error) {
	var form record.Form

	mediaType, _, _ := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
	if mediaType != echo.MIMEMultipartForm {
		if err := c.Bind(&form); err != nil {
			s.logger.Warn(c.Request().Context(), "invalid record request", zap.Error(err))
			return form, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		return form, nil, nil
	}

	form.MotorID = c.FormValue("motorId")
	form.GearID = c.FormValue("gearId")
	form.VehicleSerialNumber = c.FormValue("vehicleSerialNumber")
	form.WinNumber = c.FormValue("winNumber")
	form.Status = c.FormValue("status")

	var uploads []audioUpload
	for _, bucket := range record.Buckets {
		fh, err := c.FormFile(string(bucket))
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return form, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body")
		}
		uploads = append(uploads, audioUpload{bucket: bucket, header: fh})
	}
	return form, uploads, nil
}

// saveAudio stores every upload. When one fails, those already stored are
// removed.
func (s *Server) saveAudio(c echo.Context, uploads []audioUpload) ([]savedAudio, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.audio == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "audio uploads are disabled")
	}

	saved := make([]savedAudio, 0, len(uploads))
	for _, up := range uploads {
		ref, err := s.audio.SaveFile(c.Request().Context(), up.bucket, up.header)
		if err != nil {
			s.discardAudio(c, saved)
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		saved = append(saved, savedAudio{bucket: up.bucket, file: ref})
	}
	return saved, nil
}

func (s *Server) discardAudio(c echo.Context, saved []savedAudio) {
	for _, a := range saved {
		if err := s.audio.Remove(a.file.Key); err != nil {
			s.logger.Warn(c.Request().Context(), "failed to remove orphaned audio",
				zap.String("key", a.file.Key), zap.Error(err))
		}
	}
}

func (s *Server) handleClearRecords(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.store.Clear(ctx); err != nil {
		if !errors.Is(err, store.ErrPersist) {
			return err
		}
		s.logger.Warn(ctx, "records cleared but not persisted", zap.Error(err))
	}
	s.logger.Info(ctx, "records cleared")
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAnalytics(c echo.Context) error {
	return c.JSON(http.StatusOK, analytics.Summarize(s.store.Records()))
}

func (s *Server) handleExportPreview(c echo.Context) error {
	records := s.store.Records()
	preview := records
	if len(preview) > previewSize {
		preview = preview[:previewSize]
	}
	return c.JSON(http.StatusOK, PreviewResponse{
		Records: preview,
		Total:   len(records),
		Columns: record.Columns,
	})
}

func (s *Server) handleExport(c echo.Context) error {
	ctx := c.Request().Context()
	target := strings.ToLower(c.Param("target"))

	out := s.exports.Export(ctx, target, s.store.Records())
	if !out.Success {
		s.logger.Warn(ctx, "export failed", zap.String("target", target), zap.String("message", out.Message))
	}
	return c.JSON(exportStatus(out), out)
}

// exportStatus maps an export outcome to an HTTP status.
func exportStatus(out export.Outcome) int {
	if out.Success {
		return http.StatusOK
	}
	var apiErr *export.APIError
	switch {
	case errors.Is(out.Err, export.ErrNothingToExport):
		return http.StatusUnprocessableEntity
	case errors.Is(out.Err, export.ErrUnknownTarget):
		return http.StatusNotFound
	case errors.As(out.Err, &apiErr), errors.Is(out.Err, export.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAudio(c echo.Context) error {
	bucket, ok := record.ParseRPM(c.Param("bucket"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown rpm bucket")
	}
	file := c.Param("file")
	if file == "" || strings.HasPrefix(file, ".") {
		return echo.NewHTTPError(http.StatusNotFound, "audio file not found")
	}
	f, err := s.audio.Open(string(bucket) + "/" + file)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "audio file not found")
	}
	defer f.Close()
	return c.Stream(http.StatusOK, "application/octet-stream", f)
}
