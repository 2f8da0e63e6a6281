package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"SynthVault/internal/debt"
	"SynthVault/internal/engine"
	"SynthVault/internal/ledger"
	fpmath "SynthVault/internal/math"
	"SynthVault/internal/observability"
	"SynthVault/internal/oracle"
	"SynthVault/internal/query"
	"SynthVault/internal/risk"
)

// Server exposes the engine's operation surface over HTTP/JSON. Mutating
// requests are funneled through the processor; reads go straight to the
// engine (live state) or the query service (projections).
type Server struct {
	processor *engine.Processor
	engine    *engine.Engine
	queries   *query.Service
	health    *observability.HealthChecker
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func New(
	processor *engine.Processor,
	eng *engine.Engine,
	queries *query.Service,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	return &Server{
		processor: processor,
		engine:    eng,
		queries:   queries,
		health:    health,
		metrics:   metrics,
		log:       log,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/collateral/deposit", s.handleDeposit)
		r.Post("/collateral/redeem", s.handleRedeem)
		r.Post("/collateral/deposit-and-mint", s.handleDepositAndMint)
		r.Post("/collateral/redeem-for-debt", s.handleRedeemForDebt)
		r.Post("/debt/mint", s.handleMint)
		r.Post("/debt/burn", s.handleBurn)
		r.Post("/liquidations", s.handleLiquidate)

		r.Get("/assets", s.handleAssets)
		r.Get("/accounts/{id}", s.handleAccount)
		r.Get("/accounts/{id}/health", s.handleHealthFactor)
		r.Get("/accounts/{id}/collateral/{asset}", s.handleCollateralBalance)
		r.Get("/accounts/{id}/overview", s.handleOverview)
		r.Get("/accounts/{id}/liquidations", s.handleLiquidationHistory)
		r.Get("/accounts/{id}/transfers", s.handleTransferHistory)

		r.Get("/oracle/{asset}/usd-value", s.handleUSDValue)
		r.Get("/oracle/{asset}/token-amount", s.handleTokenAmount)

		r.Get("/admin/integrity", s.handleIntegrity)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// --- mutation handlers ---

type depositRequest struct {
	User   string `json:"user"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	user, amount, ok := s.decodeUserAmount(w, r, &req, &req.User, &req.Amount)
	if !ok {
		return
	}
	s.submit(w, r, func(e *engine.Engine) error {
		return e.DepositCollateral(user, req.Asset, amount)
	})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	user, amount, ok := s.decodeUserAmount(w, r, &req, &req.User, &req.Amount)
	if !ok {
		return
	}
	s.submit(w, r, func(e *engine.Engine) error {
		return e.RedeemCollateral(user, req.Asset, amount)
	})
}

type comboRequest struct {
	User             string `json:"user"`
	Asset            string `json:"asset"`
	AmountCollateral string `json:"amount_collateral"`
	AmountDebt       string `json:"amount_debt"`
}

func (s *Server) handleDepositAndMint(w http.ResponseWriter, r *http.Request) {
	var req comboRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, ok := s.parseUser(w, req.User)
	if !ok {
		return
	}
	amountCollateral, ok := s.parseAmount(w, req.AmountCollateral)
	if !ok {
		return
	}
	amountDebt, ok := s.parseAmount(w, req.AmountDebt)
	if !ok {
		return
	}
	s.submit(w, r, func(e *engine.Engine) error {
		return e.DepositCollateralAndMintDebt(user, req.Asset, amountCollateral, amountDebt)
	})
}

func (s *Server) handleRedeemForDebt(w http.ResponseWriter, r *http.Request) {
	var req comboRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, ok := s.parseUser(w, req.User)
	if !ok {
		return
	}
	amountCollateral, ok := s.parseAmount(w, req.AmountCollateral)
	if !ok {
		return
	}
	amountDebt, ok := s.parseAmount(w, req.AmountDebt)
	if !ok {
		return
	}
	s.submit(w, r, func(e *engine.Engine) error {
		return e.RedeemCollateralForDebt(user, req.Asset, amountCollateral, amountDebt)
	})
}

type debtRequest struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req debtRequest
	user, amount, ok := s.decodeUserAmount(w, r, &req, &req.User, &req.Amount)
	if !ok {
		return
	}
	s.submit(w, r, func(e *engine.Engine) error {
		return e.MintDebt(user, amount)
	})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req debtRequest
	user, amount, ok := s.decodeUserAmount(w, r, &req, &req.User, &req.Amount)
	if !ok {
		return
	}
	s.submit(w, r, func(e *engine.Engine) error {
		return e.BurnDebt(user, amount)
	})
}

type liquidateRequest struct {
	Liquidator  string `json:"liquidator"`
	Target      string `json:"target"`
	Asset       string `json:"asset"`
	DebtToCover string `json:"debt_to_cover"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if !s.decode(w, r, &req) {
		return
	}
	liquidator, ok := s.parseUser(w, req.Liquidator)
	if !ok {
		return
	}
	target, ok := s.parseUser(w, req.Target)
	if !ok {
		return
	}
	debtToCover, ok := s.parseAmount(w, req.DebtToCover)
	if !ok {
		return
	}
	s.submit(w, r, func(e *engine.Engine) error {
		return e.Liquidate(liquidator, target, req.Asset, debtToCover)
	})
}

// --- read handlers ---

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets":                s.engine.SupportedAssets(),
		"min_health_factor":     s.engine.MinHealthFactor().Dec(),
		"liquidation_threshold": s.engine.LiquidationThreshold(),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := s.parseUser(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	debtMinted, collateralUSD, err := s.engine.AccountInfo(user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	hf, err := s.engine.HealthFactor(user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":                 user.String(),
		"debt_minted":          debtMinted.Dec(),
		"collateral_value_usd": collateralUSD.Dec(),
		"health_factor":        hf.Dec(),
		"as_of_sequence":       s.engine.Sequence() - 1,
	})
}

func (s *Server) handleHealthFactor(w http.ResponseWriter, r *http.Request) {
	user, ok := s.parseUser(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	hf, err := s.engine.HealthFactor(user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":          user.String(),
		"health_factor": hf.Dec(),
		"healthy":       !hf.Lt(risk.MinHealthFactor),
	})
}

func (s *Server) handleCollateralBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := s.parseUser(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	asset := chi.URLParam(r, "asset")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    user.String(),
		"asset":   asset,
		"balance": s.engine.CollateralBalance(user, asset).Dec(),
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	user, ok := s.parseUser(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	overview, err := s.queries.GetAccountOverview(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleLiquidationHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := s.parseUser(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	limit, before := pagination(r)
	entries, err := s.queries.GetLiquidationHistory(r.Context(), user, limit, before)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"liquidations": entries})
}

func (s *Server) handleTransferHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := s.parseUser(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	limit, before := pagination(r)
	entries, err := s.queries.GetTransferHistory(r.Context(), user, limit, before)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": entries})
}

func (s *Server) handleUSDValue(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	amount, ok := s.parseAmount(w, r.URL.Query().Get("amount"))
	if !ok {
		return
	}
	usd, err := s.engine.USDValue(asset, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset":     asset,
		"amount":    amount.Dec(),
		"usd_value": usd.Dec(),
	})
}

func (s *Server) handleTokenAmount(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	usd, ok := s.parseAmount(w, r.URL.Query().Get("usd"))
	if !ok {
		return
	}
	amount, err := s.engine.TokenAmountFromUSD(asset, usd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset":        asset,
		"usd":          usd.Dec(),
		"token_amount": amount.Dec(),
	})
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queries.VerifyIntegrity(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// --- plumbing ---

func (s *Server) submit(w http.ResponseWriter, r *http.Request, cmd engine.Command) {
	if err := s.processor.Submit(r.Context(), cmd); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("malformed request body"))
		return false
	}
	return true
}

// decodeUserAmount handles the common body shape of one user plus one
// amount. req must point at the struct the user/amount fields live in.
func (s *Server) decodeUserAmount(w http.ResponseWriter, r *http.Request, req interface{}, user, amount *string) (uuid.UUID, *uint256.Int, bool) {
	if !s.decode(w, r, req) {
		return uuid.Nil, nil, false
	}
	u, ok := s.parseUser(w, *user)
	if !ok {
		return uuid.Nil, nil, false
	}
	a, ok := s.parseAmount(w, *amount)
	if !ok {
		return uuid.Nil, nil, false
	}
	return u, a, true
}

func (s *Server) parseUser(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	user, err := uuid.Parse(raw)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid user id"))
		return uuid.Nil, false
	}
	return user, true
}

func (s *Server) parseAmount(w http.ResponseWriter, raw string) (*uint256.Int, bool) {
	amount, err := fpmath.ParseDecimal(raw)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("invalid amount"))
		return nil, false
	}
	return amount, true
}

func pagination(r *http.Request) (int, *int64) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	var before *int64
	if raw := r.URL.Query().Get("before"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			before = &n
		}
	}
	return limit, before
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError maps engine errors onto HTTP statuses. Validation failures are
// 400, domain refusals 422, reentrancy 409, external token faults 502.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		notAllowed    *engine.TokenNotAllowedError
		breaksHealth  *risk.BreaksHealthFactorError
		healthy       *engine.HealthFactorOkayError
		notImproved   *engine.HealthFactorNotImprovedError
		insufficient  *ledger.InsufficientBalanceError
		insufficientD *debt.InsufficientDebtError
		transfer      *engine.TransferFailedError
		mint          *engine.MintFailedError
		unknownAsset  *oracle.UnknownAssetError
		invalidPrice  *oracle.InvalidPriceError
	)

	switch {
	case errors.Is(err, engine.ErrNeedsMoreThanZero),
		errors.As(err, &notAllowed),
		errors.As(err, &unknownAsset):
		s.writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))

	case errors.Is(err, engine.ErrReentrantCall):
		s.writeJSON(w, http.StatusConflict, errorBody(err.Error()))

	case errors.As(err, &breaksHealth),
		errors.As(err, &healthy),
		errors.As(err, &notImproved),
		errors.As(err, &insufficient),
		errors.As(err, &insufficientD):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))

	case errors.As(err, &transfer),
		errors.As(err, &mint),
		errors.As(err, &invalidPrice):
		s.writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody("request cancelled"))

	default:
		s.log.Error().Err(err).Msg("internal error")
		s.writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
