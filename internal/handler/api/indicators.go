package api

import (
	"context"
	"errors"
	"time"

	models "IndiStream/internal/domain/models"
	domrepo "IndiStream/internal/domain/repository"
	repo "IndiStream/internal/repository"
	"IndiStream/internal/supervisor"
	"IndiStream/internal/window"
	"IndiStream/pkg/cache"
	xhttp "IndiStream/pkg/http"
	xlogger "IndiStream/pkg/logger"

	"github.com/labstack/echo/v4"
)

// headerDataSource tells callers whether a read was served from the cache or
// from the in-process fallback.
const headerDataSource = "X-Data-Source"

// IndicatorsHandler serves the indicator read API. Reads try the cache first
// and degrade to the in-process last-known-good store, so a Redis outage
// makes responses older, not absent.
type IndicatorsHandler struct {
	logger  *xlogger.Logger
	cache   cache.Service
	latest  *repo.LatestStore
	windows *window.Store
	sup     *supervisor.Supervisor
}

func NewIndicatorsHandler(
	logger *xlogger.Logger,
	cacheSvc cache.Service,
	latest *repo.LatestStore,
	windows *window.Store,
	sup *supervisor.Supervisor,
) *IndicatorsHandler {
	return &IndicatorsHandler{
		logger:  logger,
		cache:   cacheSvc,
		latest:  latest,
		windows: windows,
		sup:     sup,
	}
}

func (h *IndicatorsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/indicators/:asset_id", h.Indicators)
	g.GET("/correlation", h.CorrelationPair)
	g.GET("/assets", h.Assets)
	g.GET("/pipeline/stats", h.PipelineStats)
}

// Indicators returns the latest snapshot for one asset.
func (h *IndicatorsHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !models.ValidAssetID(req.AssetID) {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_ASSET_ID",
			Field:   "asset_id",
			Message: "asset_id must match [A-Za-z0-9_-]{1,64}",
		}})
	}

	ctx := c.Request().Context()

	var snap models.IndicatorSnapshot
	err := h.cache.Get(ctx, repo.KeyFor(domrepo.FamilySnapshot, req.AssetID), &snap)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn("cache read failed, falling back to memory",
				xlogger.String("asset", req.AssetID), xlogger.Error(err))
		}
		fromMem, merr := h.latest.Latest(req.AssetID)
		if merr != nil {
			return xhttp.AppErrorResponse(c,
				xhttp.NotFoundErrorf("no indicators available for %s", req.AssetID).
					WithParam("asset_id", req.AssetID))
		}
		snap = *fromMem
		c.Response().Header().Set(headerDataSource, "memory")
	} else {
		c.Response().Header().Set(headerDataSource, "cache")
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, snap)
}

// CorrelationPair returns the correlation coefficient for one asset pair.
// Correlations are symmetric, so either side's published map can answer.
func (h *IndicatorsHandler) CorrelationPair(c echo.Context) error {
	req := &models.CorrelationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !models.ValidAssetID(req.Base) || !models.ValidAssetID(req.Quote) {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_ASSET_ID",
			Message: "base and quote must match [A-Za-z0-9_-]{1,64}",
		}})
	}
	if req.Base == req.Quote {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_SAME_ASSET",
			Message: "base and quote must differ",
		}})
	}

	r, source, ok := h.lookupCorrelation(c.Request().Context(), req.Base, req.Quote)
	if !ok {
		return xhttp.AppErrorResponse(c,
			xhttp.NotFoundErrorf("no correlation available for %s/%s", req.Base, req.Quote))
	}

	c.Response().Header().Set(headerDataSource, source)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, models.CorrelationResult{
		Base:        req.Base,
		Quote:       req.Quote,
		Correlation: r,
	})
}

func (h *IndicatorsHandler) lookupCorrelation(ctx context.Context, base, quote string) (float64, string, bool) {
	sides := [2][2]string{{base, quote}, {quote, base}}

	for _, s := range sides {
		var m map[string]float64
		err := h.cache.Get(ctx, repo.KeyFor(domrepo.FamilyCorrelation, s[0]), &m)
		if err == nil {
			if v, ok := m[s[1]]; ok {
				return v, "cache", true
			}
			continue
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Debug("correlation cache read failed",
				xlogger.String("asset", s[0]), xlogger.Error(err))
		}
	}

	for _, s := range sides {
		snap, err := h.latest.Latest(s[0])
		if err != nil {
			continue
		}
		if v, ok := snap.Correlation(s[1]); ok {
			return v, "memory", true
		}
	}

	return 0, "", false
}

// Assets lists every asset the pipeline has seen.
func (h *IndicatorsHandler) Assets(c echo.Context) error {
	all := h.windows.Assets()

	assets := all
	if limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0); limit > 0 && limit < len(all) {
		assets = all[:limit]
	}

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"assets": assets,
		"total":  len(all),
	})
}

type pipelineStats struct {
	Consumer   supervisor.Status       `json:"consumer"`
	AssetCount int                     `json:"asset_count"`
	Retained   int                     `json:"snapshots_retained"`
	Windows    map[string]window.Stats `json:"windows,omitempty"`
}

// PipelineStats exposes consumer and per-asset window counters for operators.
func (h *IndicatorsHandler) PipelineStats(c echo.Context) error {
	stats := pipelineStats{
		Retained: h.latest.Len(),
		Windows:  make(map[string]window.Stats),
	}
	if h.sup != nil {
		stats.Consumer = h.sup.Status()
	}

	for _, id := range h.windows.Assets() {
		if ws, ok := h.windows.Stats(id); ok {
			stats.Windows[id] = ws
		}
	}
	stats.AssetCount = len(stats.Windows)

	return xhttp.SuccessResponse(c, stats)
}

type healthStatus struct {
	Status string    `json:"status"`
	Cache  string    `json:"cache"`
	Time   time.Time `json:"time"`
}

// Health reports liveness. A dead cache degrades reads but does not kill the
// process, so this stays 200 and flags the cache state instead.
func (h *IndicatorsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
	defer cancel()

	res := healthStatus{Status: "ok", Cache: "up", Time: time.Now().UTC()}
	if err := h.cache.Ping(ctx); err != nil {
		res.Status = "degraded"
		res.Cache = "down"
	}
	return xhttp.SuccessResponse(c, res)
}
