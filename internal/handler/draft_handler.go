package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/service"
)

type DraftHandler struct {
	draftService   service.DraftService
	commandService service.CommandService
	logger         *logger.Logger
}

func NewDraftHandler(draftService service.DraftService, commandService service.CommandService, logger *logger.Logger) *DraftHandler {
	return &DraftHandler{
		draftService:   draftService,
		commandService: commandService,
		logger:         logger,
	}
}

type listDraftsQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=pending sent edited rejected"`
	Period string `query:"period" validate:"omitempty,oneof=day week month"`
}

type editRequest struct {
	EditedText string `json:"edited_text" validate:"required,max=10000"`
}

// ListDrafts returns the account's drafts, newest first
func (h *DraftHandler) ListDrafts(c echo.Context) error {
	var q listDraftsQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid query"})
	}
	if err := c.Validate(&q); err != nil {
		return respondError(c, h.logger, err)
	}

	var status *model.DraftStatus
	if q.Status != "" {
		s := model.DraftStatus(q.Status)
		status = &s
	}
	drafts, err := h.draftService.ListDrafts(c.Request().Context(), currentAccount(c), status, q.Period)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, drafts)
}

func (h *DraftHandler) ListPending(c echo.Context) error {
	drafts, err := h.draftService.ListPending(c.Request().Context(), currentAccount(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, drafts)
}

func (h *DraftHandler) GetDraft(c echo.Context) error {
	draft, err := h.draftService.GetDraft(c.Request().Context(), currentAccount(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, draft)
}

func (h *DraftHandler) Approve(c echo.Context) error {
	return h.apply(c, model.Approve())
}

func (h *DraftHandler) Reject(c echo.Context) error {
	return h.apply(c, model.Reject())
}

func (h *DraftHandler) Edit(c echo.Context) error {
	var req editRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.logger, err)
	}
	return h.apply(c, model.Edit(req.EditedText))
}

// apply reports an already resolved draft as ok=false with its current
// status, so a retried request gets the same answer as the first one.
func (h *DraftHandler) apply(c echo.Context, cmd model.Command) error {
	result, err := h.commandService.Apply(c.Request().Context(), c.Param("id"), currentAccount(c), cmd)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, result)
}
