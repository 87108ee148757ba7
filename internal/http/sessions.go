package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marginalia/internal/catalog"
	"marginalia/internal/pipeline"
	"marginalia/internal/session"
	"marginalia/internal/store"
)

type SessionsController struct {
	pipeline *pipeline.Pipeline
	library  *catalog.Library
}

func NewSessionsController(p *pipeline.Pipeline, library *catalog.Library) *SessionsController {
	return &SessionsController{pipeline: p, library: library}
}

func (ctl *SessionsController) Get(ctx *gin.Context) {
	s, ok := ctl.pipeline.Sessions().Get(ctx.Param("id"))
	if !ok {
		respondError(ctx, http.StatusNotFound, fmt.Errorf("unknown session %q", ctx.Param("id")))
		return
	}
	ctx.JSON(http.StatusOK, sessionView(s))
}

func (ctl *SessionsController) Toggle(ctx *gin.Context) {
	s, itemID, ok := ctl.sessionItem(ctx)
	if !ok {
		return
	}
	if err := s.Toggle(itemID); err != nil {
		respondError(ctx, statusForSessionError(err), err)
		return
	}
	ctx.JSON(http.StatusOK, sessionView(s))
}

type OverrideTargetRequest struct {
	CatalogEntryID uint `json:"catalog_entry_id" binding:"required"`
}

// OverrideTarget points a partial or unmatched item at a user-chosen
// catalog entry.
func (ctl *SessionsController) OverrideTarget(ctx *gin.Context) {
	s, itemID, ok := ctl.sessionItem(ctx)
	if !ok {
		return
	}

	var req OverrideTargetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, err)
		return
	}

	entry, err := ctl.library.Get(req.CatalogEntryID)
	if err != nil {
		respondError(ctx, http.StatusNotFound, fmt.Errorf("unknown catalog entry %d", req.CatalogEntryID))
		return
	}

	if err := s.OverrideTarget(itemID, *entry); err != nil {
		respondError(ctx, statusForSessionError(err), err)
		return
	}
	ctx.JSON(http.StatusOK, sessionView(s))
}

func (ctl *SessionsController) Commit(ctx *gin.Context) {
	id := ctx.Param("id")
	outcome, err := ctl.pipeline.CommitSession(id)
	if err != nil {
		var persistErr *store.PersistenceError
		switch {
		case errors.As(err, &persistErr):
			respondError(ctx, http.StatusInternalServerError, err)
		case errors.Is(err, session.ErrNoTarget):
			respondError(ctx, http.StatusConflict, err)
		default:
			respondError(ctx, statusForSessionError(err), err)
		}
		return
	}
	ctx.JSON(http.StatusOK, outcome)
}

func (ctl *SessionsController) Discard(ctx *gin.Context) {
	if err := ctl.pipeline.DiscardSession(ctx.Param("id")); err != nil {
		respondError(ctx, http.StatusNotFound, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (ctl *SessionsController) sessionItem(ctx *gin.Context) (*session.Session, int, bool) {
	s, ok := ctl.pipeline.Sessions().Get(ctx.Param("id"))
	if !ok {
		respondError(ctx, http.StatusNotFound, fmt.Errorf("unknown session %q", ctx.Param("id")))
		return nil, 0, false
	}
	itemID, err := strconv.Atoi(ctx.Param("item"))
	if err != nil {
		respondError(ctx, http.StatusBadRequest, fmt.Errorf("invalid item id %q", ctx.Param("item")))
		return nil, 0, false
	}
	return s, itemID, true
}

func statusForSessionError(err error) int {
	switch {
	case errors.Is(err, session.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrOverrideForbidden):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusGone
	default:
		return http.StatusNotFound
	}
}
