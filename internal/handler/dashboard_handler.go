package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"draft-relay/internal/logger"
	"draft-relay/internal/service"
	"draft-relay/internal/sse"
)

type DashboardHandler struct {
	draftService   service.DraftService
	scanService    service.ScanService
	accountService service.AccountService
	events         *sse.Manager
	manualMax      int
	lookback       time.Duration
	logger         *logger.Logger
}

func NewDashboardHandler(
	draftService service.DraftService,
	scanService service.ScanService,
	accountService service.AccountService,
	events *sse.Manager,
	manualMax int,
	lookback time.Duration,
	logger *logger.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		draftService:   draftService,
		scanService:    scanService,
		accountService: accountService,
		events:         events,
		manualMax:      manualMax,
		lookback:       lookback,
		logger:         logger,
	}
}

type scanRequest struct {
	MaxItems      int `validate:"min=1,max=50"`
	LookbackHours int `validate:"min=1,max=720"`
}

// Scan runs a manual scan for the signed-in account
func (h *DashboardHandler) Scan(c echo.Context) error {
	req := scanRequest{MaxItems: h.manualMax, LookbackHours: int(h.lookback / time.Hour)}
	if v := c.QueryParam("max_items"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "max_items must be a number"})
		}
		req.MaxItems = n
	}
	if v := c.QueryParam("lookback_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "lookback_hours must be a number"})
		}
		req.LookbackHours = n
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.scanService.Scan(c.Request().Context(), currentAccount(c), time.Duration(req.LookbackHours)*time.Hour, req.MaxItems)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *DashboardHandler) Stats(c echo.Context) error {
	stats, err := h.draftService.GetStats(c.Request().Context(), currentAccount(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *DashboardHandler) Logs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	logs, err := h.draftService.GetLogs(c.Request().Context(), currentAccount(c), limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, logs)
}

func (h *DashboardHandler) GetAccount(c echo.Context) error {
	account, err := h.accountService.GetAccount(c.Request().Context(), currentAccount(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, account)
}

func (h *DashboardHandler) UpdateSettings(c echo.Context) error {
	var settings service.AccountSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(&settings); err != nil {
		return respondError(c, h.logger, err)
	}
	account, err := h.accountService.UpdateSettings(c.Request().Context(), currentAccount(c), settings)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, account)
}

// Events streams dashboard events as Server-Sent Events
func (h *DashboardHandler) Events(c echo.Context) error {
	accountID := currentAccount(c)

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")

	clientChannel := h.events.AddClient(accountID)
	defer h.events.RemoveClient(accountID, clientChannel)

	initJSON, _ := json.Marshal(sse.Event{
		Type: "connection",
		Data: map[string]string{"account_id": accountID},
		Time: time.Now().Unix(),
	})
	fmt.Fprintf(c.Response(), "data: %s\n\n", initJSON)
	c.Response().Flush()

	for {
		select {
		case eventData, ok := <-clientChannel:
			if !ok {
				return nil
			}
			fmt.Fprintf(c.Response(), "data: %s\n\n", eventData)
			c.Response().Flush()
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
