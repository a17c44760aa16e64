package api

import (
	"time"

	"TradePulse/internal/analysis"
	models "TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/usecase"
	pkgcache "TradePulse/pkg/cache"
	formulas "TradePulse/pkg/formulas"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EngineHandler exposes the control surface: scores, weights, correlation
// state, gate state, outcome intake, and the auto-trading switch.
type EngineHandler struct {
	logger    *xlogger.Logger
	board     *usecase.ScoreBoard
	weights   *analysis.WeightBook
	corr      *analysis.CorrelationEngine
	gate      *usecase.Gate
	auto      *usecase.AutoTrading
	cache     domrepo.SampleCache
	store     domrepo.DecisionStore
	optimizer *analysis.Optimizer
	resp      pkgcache.Service
}

func NewEngineHandler(
	logger *xlogger.Logger,
	board *usecase.ScoreBoard,
	weights *analysis.WeightBook,
	corr *analysis.CorrelationEngine,
	gate *usecase.Gate,
	auto *usecase.AutoTrading,
	cache domrepo.SampleCache,
	store domrepo.DecisionStore,
	optimizer *analysis.Optimizer,
	resp pkgcache.Service,
) *EngineHandler {
	return &EngineHandler{
		logger:    logger,
		board:     board,
		weights:   weights,
		corr:      corr,
		gate:      gate,
		auto:      auto,
		cache:     cache,
		store:     store,
		optimizer: optimizer,
		resp:      resp,
	}
}

func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/scores", h.Scores)
	g.GET("/weights", h.Weights)
	g.GET("/correlation", h.Correlation)
	g.GET("/correlation/window", h.CorrelationWindow)
	g.PUT("/correlation/limit", h.SetInstrumentLimit)
	g.GET("/gate/:asset", h.GateState)
	g.GET("/auto-trading", h.AutoTrading)
	g.PUT("/auto-trading", h.SetAutoTrading)
	g.POST("/outcomes", h.RecordOutcome)
	g.POST("/optimizer/run", h.RunOptimizer)
	g.GET("/health", h.Health)
}

func (h *EngineHandler) Scores(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.board.Latest())
}

func (h *EngineHandler) Weights(c echo.Context) error {
	w := h.weights.Current()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"version":    w.Version,
		"updated_at": w.UpdatedAt,
		"weights":    w.Weights,
	})
}

// correlationView is the cached shape of the correlation matrix response.
type correlationView struct {
	Tracked int                        `json:"tracked"`
	Limit   int                        `json:"limit"`
	Pairs   []analysis.PairCorrelation `json:"pairs"`
}

func (h *EngineHandler) Correlation(c echo.Context) error {
	ctx := c.Request().Context()
	key := pkgcache.GenerateKey("resp", "correlation_matrix")

	var cached correlationView
	if err := h.resp.Get(ctx, key, &cached); err == nil {
		return xhttp.SuccessResponse(c, cached)
	}
	res := correlationView{
		Tracked: h.corr.TrackedInstruments(),
		Limit:   h.corr.InstrumentLimit(),
		Pairs:   h.corr.Matrix(),
	}
	if err := h.resp.Set(ctx, key, res, 5*time.Second); err != nil {
		h.logger.Warn("correlation response cache", xlogger.Error(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// CorrelationWindow recomputes the coefficient from the mirrored window, for
// cross-checking the incremental value.
func (h *EngineHandler) CorrelationWindow(c echo.Context) error {
	req := &models.PairWindowRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	interleaved, err := h.cache.LoadWindow(c.Request().Context(), req.Pair)
	if err != nil {
		h.logger.Error("window load error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if len(interleaved) < 4 {
		return xhttp.NotFoundResponse(c, "window not mirrored or too short")
	}
	xs := make([]float64, 0, len(interleaved)/2)
	ys := make([]float64, 0, len(interleaved)/2)
	for i := 0; i+1 < len(interleaved); i += 2 {
		xs = append(xs, interleaved[i])
		ys = append(ys, interleaved[i+1])
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"pair":        req.Pair,
		"samples":     len(xs),
		"correlation": formulas.Correlation(xs, ys),
	})
}

func (h *EngineHandler) SetInstrumentLimit(c echo.Context) error {
	req := &models.InstrumentLimitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.corr.SetInstrumentLimit(req.Limit)
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"limit":   h.corr.InstrumentLimit(),
		"tracked": h.corr.TrackedInstruments(),
	})
}

func (h *EngineHandler) GateState(c echo.Context) error {
	req := &models.GateStateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"asset": req.Asset,
		"state": h.gate.State(req.Asset).String(),
	})
}

func (h *EngineHandler) AutoTrading(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]bool{"enabled": h.auto.Enabled()})
}

func (h *EngineHandler) SetAutoTrading(c echo.Context) error {
	req := &models.AutoTradingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.auto.Set(*req.Enabled)
	h.logger.Info("auto trading toggled", xlogger.Bool("enabled", *req.Enabled))
	return xhttp.SuccessResponse(c, map[string]bool{"enabled": h.auto.Enabled()})
}

func (h *EngineHandler) RecordOutcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	o := &models.Outcome{
		DecisionID:     req.DecisionID,
		RealizedReturn: req.RealizedReturn,
		EvaluatedAt:    time.Now().UTC(),
	}
	if err := h.store.AppendOutcome(c.Request().Context(), o); err != nil {
		h.logger.Error("outcome append error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, o)
}

func (h *EngineHandler) RunOptimizer(c echo.Context) error {
	if err := h.optimizer.RunOnce(c.Request().Context()); err != nil {
		h.logger.Error("optimizer run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	w := h.weights.Current()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"version": w.Version,
		"weights": w.Weights,
	})
}

func (h *EngineHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
