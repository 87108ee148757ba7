package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marginalia/internal/pipeline"
	"marginalia/internal/store"
)

type AnnotationsController struct {
	pipeline *pipeline.Pipeline
}

func NewAnnotationsController(p *pipeline.Pipeline) *AnnotationsController {
	return &AnnotationsController{pipeline: p}
}

// List returns the stored annotations for one (catalog entry, backend)
// key, in insertion order.
func (ctl *AnnotationsController) List(ctx *gin.Context) {
	entryID, err := strconv.ParseUint(ctx.Param("entry"), 10, 32)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, fmt.Errorf("invalid catalog entry id %q", ctx.Param("entry")))
		return
	}

	rows, err := ctl.pipeline.Store().Annotations(uint(entryID), ctx.Param("backend"))
	if err != nil {
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	ctx.JSON(http.StatusOK, rows)
}

// PurgeAll removes every stored annotation. The route is only mounted in
// developer mode, and the store re-checks the flag itself.
func (ctl *AnnotationsController) PurgeAll(ctx *gin.Context) {
	if err := ctl.pipeline.Store().PurgeAll(); err != nil {
		if errors.Is(err, store.ErrDeveloperModeDisabled) {
			respondError(ctx, http.StatusForbidden, err)
			return
		}
		respondError(ctx, http.StatusInternalServerError, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
