package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"marginalia/internal/fetch"
	"marginalia/internal/pipeline"
)

type FetchController struct {
	pipeline *pipeline.Pipeline
}

func NewFetchController(p *pipeline.Pipeline) *FetchController {
	return &FetchController{pipeline: p}
}

type FetchRequest struct {
	Source string `json:"source" binding:"required"`
}

// Fetch probes the named fetch-capable backend and answers with the
// resulting selection session. A fetch already running against the same
// source is rejected, not queued.
func (ctl *FetchController) Fetch(ctx *gin.Context) {
	var req FetchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, err)
		return
	}

	s, err := ctl.pipeline.FetchFromSource(ctx.Request.Context(), req.Source)
	if err != nil {
		switch {
		case errors.Is(err, fetch.ErrSourceBusy):
			respondError(ctx, http.StatusConflict, err)
		case errors.Is(err, pipeline.ErrNotFetchCapable):
			respondError(ctx, http.StatusBadRequest, err)
		default:
			respondError(ctx, http.StatusInternalServerError, err)
		}
		return
	}

	ctx.JSON(http.StatusCreated, sessionView(s))
}

type BackendsController struct {
	pipeline *pipeline.Pipeline
}

func NewBackendsController(p *pipeline.Pipeline) *BackendsController {
	return &BackendsController{pipeline: p}
}

type BackendView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// List reports the registered backends in registration order, which is
// also the import trial order.
func (ctl *BackendsController) List(ctx *gin.Context) {
	var out []BackendView
	for _, d := range ctl.pipeline.Registry().Descriptors() {
		caps := make([]string, 0, len(d.Capabilities))
		for _, c := range d.Capabilities {
			caps = append(caps, string(c))
		}
		out = append(out, BackendView{ID: d.ID, Name: d.Name, Capabilities: caps})
	}
	ctx.JSON(http.StatusOK, out)
}
