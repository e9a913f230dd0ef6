package api

import (
	"errors"

	models "MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/repository"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DashboardHandler exposes the read-only dashboard API: market definitions
// with their current status, and captured session rows.
type DashboardHandler struct {
	logger   *xlogger.Logger
	markets  domrepo.MarketStore
	sessions domrepo.SessionStore
	stats    domrepo.StatStore
}

func NewDashboardHandler(logger *xlogger.Logger, markets domrepo.MarketStore, sessions domrepo.SessionStore, stats domrepo.StatStore) *DashboardHandler {
	return &DashboardHandler{logger: logger, markets: markets, sessions: sessions, stats: stats}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/markets", h.Markets)
	g.GET("/markets/:key", h.Market)
	g.GET("/sessions", h.Sessions)
	g.GET("/week52", h.Week52)
	e.GET("/health", h.Health)
}

func (h *DashboardHandler) Markets(c echo.Context) error {
	req := &models.MarketsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var (
		list []*models.Market
		err  error
	)
	if req.ControlOnly {
		list, err = h.markets.Controlled(c.Request().Context())
	} else {
		list, err = h.markets.All(c.Request().Context())
	}
	if err != nil {
		h.logger.Error("markets list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, list)
}

func (h *DashboardHandler) Market(c echo.Context) error {
	key := c.Param("key")
	m, err := h.markets.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownMarket) {
			return xhttp.NotFoundResponse(c, "unknown market: "+key)
		}
		h.logger.Error("market get error", xlogger.String("market", key), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, m)
}

func (h *DashboardHandler) Sessions(c echo.Context) error {
	req := &models.SessionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	sessionNo := req.SessionNo
	if sessionNo == 0 {
		latest, err := h.sessions.LatestSessionNo(ctx, req.Market)
		if err != nil {
			h.logger.Error("sessions latest error", xlogger.String("market", req.Market), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		if latest == 0 {
			return xhttp.ListResponse(c, []*models.Session{}, 0)
		}
		sessionNo = latest
	}

	rows, err := h.sessions.OpenRows(ctx, req.Market, sessionNo)
	if err != nil {
		h.logger.Error("sessions list error", xlogger.String("market", req.Market), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if req.Limit > 0 && len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *DashboardHandler) Week52(c echo.Context) error {
	stats, err := h.stats.All52w(c.Request().Context())
	if err != nil {
		h.logger.Error("week52 list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, stats, int64(len(stats)))
}

func (h *DashboardHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
