package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"pdf-rag-qa/internal/db"
	"pdf-rag-qa/internal/helper"
	"pdf-rag-qa/internal/models"
	"pdf-rag-qa/internal/rag"
)

const (
	rootMessage    = "RAG Backend is running. POST to /query to ask questions."
	uploadedAtDate = "2024-05-20"
	uploadField    = "files"
)

// Pipeline is the part of rag.Service the handlers call.
type Pipeline interface {
	Ingest(ctx context.Context) (rag.IngestSummary, error)
	Query(ctx context.Context, question string) (models.Answer, error)
	Reset() error
	Count() int
	Ingestions(ctx context.Context, limit int) ([]db.IngestionRun, error)
}

type Handler struct {
	pipeline Pipeline
	dataDir  string
}

func NewHandler(pipeline Pipeline, dataDir string) *Handler {
	return &Handler{pipeline: pipeline, dataDir: dataDir}
}

type QueryRequest struct {
	Question string `json:"question"`
}

type DocumentInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	UploadedAt string `json:"uploadedAt"`
}

type UploadResponse struct {
	Message string             `json:"message"`
	Files   []string           `json:"files"`
	Summary *rag.IngestSummary `json:"summary,omitempty"`
}

func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": rootMessage})
}

// Upload saves the posted files into the data directory and re-ingests the
// whole directory.
func (h *Handler) Upload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return invalid(c, fmt.Sprintf("read multipart form: %v", err))
	}
	files := form.File[uploadField]
	if len(files) == 0 {
		return invalid(c, "field required: files")
	}
	if err := helper.CreateFolder(h.dataDir); err != nil {
		return fail(c, err)
	}

	names := make([]string, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if name == "." || name == string(filepath.Separator) {
			return fail(c, fmt.Errorf("invalid file name %q", fh.Filename))
		}
		if err := saveFile(fh, filepath.Join(h.dataDir, name)); err != nil {
			return fail(c, err)
		}
		names = append(names, name)
		log.Info().Str("file", name).Int64("size", fh.Size).Msg("Saved upload")
	}

	summary, err := h.pipeline.Ingest(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, UploadResponse{
		Message: fmt.Sprintf("Successfully uploaded and ingested %d files.", len(names)),
		Files:   names,
		Summary: &summary,
	})
}

func saveFile(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dst), err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(dst), err)
	}
	return out.Close()
}

// Documents lists the files in the data directory.
func (h *Handler) Documents(c echo.Context) error {
	entries, err := os.ReadDir(h.dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c.JSON(http.StatusOK, []DocumentInfo{})
		}
		return fail(c, err)
	}

	docs := []DocumentInfo{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		docs = append(docs, DocumentInfo{
			ID:         strconv.Itoa(len(docs)),
			Name:       entry.Name(),
			Type:       helper.FileType(entry.Name()),
			UploadedAt: uploadedAtDate,
		})
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) Query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return invalid(c, "invalid request body")
	}
	if req.Question == "" {
		return invalid(c, "field required: question")
	}
	answer, err := h.pipeline.Query(c.Request().Context(), req.Question)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, answer)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "entries": h.pipeline.Count()})
}

// ClearIndex removes every entry from the vector store.
func (h *Handler) ClearIndex(c echo.Context) error {
	if err := h.pipeline.Reset(); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Vector store cleared."})
}

func (h *Handler) Ingestions(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := h.pipeline.Ingestions(c.Request().Context(), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, runs)
}

func invalid(c echo.Context, detail string) error {
	return c.JSON(http.StatusUnprocessableEntity, echo.Map{"detail": detail})
}

func fail(c echo.Context, err error) error {
	log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"detail": err.Error()})
}
