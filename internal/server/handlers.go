package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/straja-ai/ukredact/internal/audit"
	"github.com/straja-ai/ukredact/internal/entities"
	"github.com/straja-ai/ukredact/internal/export"
	"github.com/straja-ai/ukredact/internal/fileio"
	"github.com/straja-ai/ukredact/internal/pipeline"
	"github.com/straja-ai/ukredact/internal/redact"
)

const robotsTxt = "User-agent: *\nDisallow: /\n"

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok\n")
}

func handleRobots(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/plain", []byte(robotsTxt))
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	res, ok := s.analyze(c, *req.Text)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.response(c, res, nil))
}

func (s *Server) handleAnalyzeFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			writeError(c, http.StatusRequestEntityTooLarge, "request body too large", "request_too_large")
			return
		}
		writeError(c, http.StatusBadRequest, "missing multipart field \"file\"", "invalid_request")
		return
	}
	if !fileio.Supported(fh.Filename) {
		writeError(c, http.StatusUnsupportedMediaType, "only .txt and .docx files are supported", "unsupported_file")
		return
	}
	src, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "cannot open uploaded file", "invalid_request")
		return
	}
	defer src.Close()

	f, err := fileio.NewReader(s.cfg.Server.MaxBodyBytes).Read(fh.Filename, src)
	switch {
	case errors.Is(err, fileio.ErrTooLarge):
		writeError(c, http.StatusRequestEntityTooLarge, "file too large", "request_too_large")
		return
	case err != nil:
		writeError(c, http.StatusUnprocessableEntity, redact.String(err.Error()), "unreadable_file")
		return
	}

	text := fileio.Sanitize(f.Text)
	res, ok := s.analyze(c, text)
	if !ok {
		return
	}
	info := &FileInfo{Name: f.Name, Type: f.Type, Encoding: f.Encoding, Chars: f.Chars()}
	c.JSON(http.StatusOK, s.response(c, res, info))
}

func (s *Server) handleExport(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	kind, err := export.ParseKind(req.Kind)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error(), "invalid_request")
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error(), "invalid_request")
		return
	}

	res, ok := s.analyze(c, *req.Text)
	if !ok {
		return
	}

	now := time.Now()
	doc := export.NewDocument(res, now)
	var buf bytes.Buffer
	if kind == export.KindAnonymized {
		err = export.Anonymized(&buf, doc, format, req.Metadata == nil || *req.Metadata)
	} else {
		err = export.Write(&buf, doc, kind, format)
	}
	if errors.Is(err, export.ErrUnsupported) {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("%s export does not support %s (use %s)", kind, format, joinFormats(export.Formats(kind))), "invalid_request")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "export failed", "internal_error")
		return
	}

	name := export.Filename(req.BaseName, format, now)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, export.ContentType(format), buf.Bytes())
}

func (s *Server) handleEntities(c *gin.Context) {
	info := s.analyzer.Info()
	active := entities.NewSet(append(append([]string(nil), info.NEREntities...), info.PatternEntities...)...)

	classes := append(entities.NERClasses(), entities.PatternClasses()...)
	out := EntitiesResponse{Info: info, Classes: make([]ClassInfo, 0, len(classes))}
	for _, cl := range classes {
		out.Classes = append(out.Classes, ClassInfo{Class: cl, Enabled: active.Has(cl.Name)})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSchema(c *gin.Context) {
	if name := c.Query("name"); name != "" {
		raw, ok := s.schemas[name]
		if !ok {
			writeError(c, http.StatusNotFound, "unknown schema "+name, "not_found")
			return
		}
		c.Data(http.StatusOK, "application/schema+json", raw)
		return
	}
	c.JSON(http.StatusOK, s.schemas)
}

// analyze runs the pipeline, audits the call and writes an error response
// on failure.
func (s *Server) analyze(c *gin.Context, text string) (*pipeline.Result, bool) {
	start := time.Now()
	res, err := s.analyzer.Analyze(c.Request.Context(), text)
	s.audit.Emit(c.Request.Context(), audit.NewEvent(getRequestID(c), audit.SurfaceAPI, text, res, err, time.Since(start)))
	if err == nil {
		return res, true
	}

	var de *pipeline.DetectorError
	switch {
	case errors.Is(err, pipeline.ErrTextTooLong):
		writeError(c, http.StatusBadRequest, err.Error(), "text_too_long")
	case errors.As(err, &de):
		writeError(c, http.StatusBadGateway, de.Detector+" detector failed", "detector_error")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusServiceUnavailable, "request cancelled", "cancelled")
	default:
		writeError(c, http.StatusInternalServerError, "analysis failed", "internal_error")
	}
	return nil, false
}

func (s *Server) response(c *gin.Context, res *pipeline.Result, file *FileInfo) AnalyzeResponse {
	doc := export.NewDocument(res, time.Now())
	ents := doc.Entities
	if ents == nil {
		ents = []export.Entity{}
	}
	return AnalyzeResponse{
		RequestID:       getRequestID(c),
		AnonymizedText:  res.AnonymizedText,
		Report:          res.Report(),
		Entities:        ents,
		Statistics:      doc.Statistics(),
		OverlapsRemoved: res.OverlapsRemoved,
		Dropped:         res.Dropped,
		DurationMs:      float64(res.Duration.Microseconds()) / 1000,
		File:            file,
	}
}

func writeBindError(c *gin.Context, err error) {
	if isTooLarge(err) {
		writeError(c, http.StatusRequestEntityTooLarge, "request body too large", "request_too_large")
		return
	}
	if errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "empty request body", "invalid_request")
		return
	}
	writeError(c, http.StatusBadRequest, "invalid request: "+redact.String(err.Error()), "invalid_request")
}

func writeError(c *gin.Context, status int, message, typ string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorDetail{
		Message:   message,
		Type:      typ,
		RequestID: getRequestID(c),
	}})
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func joinFormats(fs []export.Format) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
