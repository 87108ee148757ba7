package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"marginalia/internal/importer"
	"marginalia/internal/pipeline"
)

const maxImportFileSize = 50 * 1024 * 1024 // 50 MB, sqlite backups included

type ImportController struct {
	pipeline *pipeline.Pipeline
}

func NewImportController(p *pipeline.Pipeline) *ImportController {
	return &ImportController{pipeline: p}
}

// Import accepts an exported annotations file, runs it through the
// registered parsers and answers with the resulting selection session.
func (ctl *ImportController) Import(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("annotations_file")
	if err != nil {
		respondError(ctx, http.StatusBadRequest, errors.New("annotations file not provided"))
		return
	}
	defer file.Close()

	if header.Size > maxImportFileSize {
		respondError(ctx, http.StatusBadRequest,
			fmt.Errorf("file too large (max %d MB)", maxImportFileSize/(1024*1024)))
		return
	}

	blob, err := io.ReadAll(io.LimitReader(file, maxImportFileSize+1))
	if err != nil {
		respondError(ctx, http.StatusBadRequest, fmt.Errorf("failed to read file: %w", err))
		return
	}

	hint := filepath.Ext(header.Filename)
	s, err := ctl.pipeline.ImportBlob(blob, hint)
	if err != nil {
		var formatErr *importer.UnrecognizedFormatError
		if errors.As(err, &formatErr) {
			respondError(ctx, http.StatusUnprocessableEntity, formatErr)
			return
		}
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}

	ctx.JSON(http.StatusCreated, sessionView(s))
}
