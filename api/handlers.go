package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"wagerbook/models"
	"wagerbook/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler provides HTTP endpoints for wager and escrow operations
type Handler struct {
	wagers service.WagerService
	escrow service.EscrowService
}

// NewHandler creates a new API handler
func NewHandler(wagers service.WagerService, escrow service.EscrowService) *Handler {
	return &Handler{wagers: wagers, escrow: escrow}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/wagers", h.CreateWager)
	r.GET("/wagers/:id", h.GetWager)
	r.GET("/wagers/:id/events", h.GetWagerEvents)
	r.POST("/wagers/:id/accept", h.AcceptWager)
	r.POST("/wagers/:id/settle", h.SettleWager)
	r.POST("/wagers/:id/cancel", h.CancelWager)
	r.POST("/wagers/:id/assets/:assetId/dispose", h.MarkAssetDisposed)
	r.PUT("/wagers/:id/assets/:assetId/value", h.UpdateAssetValue)

	r.GET("/parties/:id/wagers", h.GetActiveWagers)
	r.GET("/parties/:id/stats", h.GetStats)

	r.GET("/escrows/:id", h.GetEscrow)
	r.POST("/escrows/:id/confirm-funding", h.ConfirmFunding)

	r.POST("/balance/preview", h.PreviewBalance)
}

type stakeAsset struct {
	AssetID string `json:"asset_id" binding:"required"`
	Name    string `json:"name"`
	Value   int64  `json:"value"`
}

type stakeProposal struct {
	Cash   int64        `json:"cash"`
	Assets []stakeAsset `json:"assets"`
}

func (p stakeProposal) toModel() models.StakeProposal {
	proposal := models.StakeProposal{Cash: p.Cash}
	for _, a := range p.Assets {
		proposal.Assets = append(proposal.Assets, models.StakedAsset{
			AssetID: a.AssetID,
			Name:    a.Name,
			Value:   a.Value,
		})
	}
	return proposal
}

type createWagerRequest struct {
	CreatorID     string         `json:"creator_id" binding:"required"`
	Type          string         `json:"type" binding:"required"`
	Timeframe     string         `json:"timeframe" binding:"required"`
	StartDate     time.Time      `json:"start_date" binding:"required"`
	EndDate       time.Time      `json:"end_date" binding:"required"`
	LeagueID      *string        `json:"league_id"`
	IsPublic      bool           `json:"is_public"`
	CreatorStake  stakeProposal  `json:"creator_stake" binding:"required"`
	OpponentID    *string        `json:"opponent_id"`
	OpponentStake *stakeProposal `json:"opponent_stake"`
}

// CreateWager handles POST /v1/wagers
func (h *Handler) CreateWager(c *gin.Context) {
	var req createWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	svcReq := service.CreateWagerRequest{
		CreatorID:    req.CreatorID,
		Type:         req.Type,
		Timeframe:    req.Timeframe,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		LeagueID:     req.LeagueID,
		IsPublic:     req.IsPublic,
		CreatorStake: req.CreatorStake.toModel(),
		OpponentID:   req.OpponentID,
	}
	if req.OpponentStake != nil {
		proposal := req.OpponentStake.toModel()
		svcReq.OpponentStake = &proposal
	}

	wager, err := h.wagers.CreateWager(c.Request.Context(), svcReq)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"wager": wager}})
}

type acceptWagerRequest struct {
	OpponentID string        `json:"opponent_id" binding:"required"`
	Stake      stakeProposal `json:"stake" binding:"required"`
}

// AcceptWager handles POST /v1/wagers/:id/accept
func (h *Handler) AcceptWager(c *gin.Context) {
	wagerID, ok := wagerParam(c)
	if !ok {
		return
	}

	var req acceptWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	wager, err := h.wagers.AcceptWager(c.Request.Context(), wagerID, req.OpponentID, req.Stake.toModel())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"wager": wager}})
}

type settleWagerRequest struct {
	WinnerID          string `json:"winner_id" binding:"required"`
	PerformanceResult string `json:"performance_result"`
	SettledBy         string `json:"settled_by" binding:"required"`
}

// SettleWager handles POST /v1/wagers/:id/settle
func (h *Handler) SettleWager(c *gin.Context) {
	wagerID, ok := wagerParam(c)
	if !ok {
		return
	}

	var req settleWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.wagers.SettleWager(c.Request.Context(), wagerID, req.WinnerID, req.PerformanceResult, req.SettledBy)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"settlement": result}})
}

type cancelWagerRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
}

// CancelWager handles POST /v1/wagers/:id/cancel
func (h *Handler) CancelWager(c *gin.Context) {
	wagerID, ok := wagerParam(c)
	if !ok {
		return
	}

	var req cancelWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.wagers.CancelWager(c.Request.Context(), wagerID, req.RequesterID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetWager handles GET /v1/wagers/:id
func (h *Handler) GetWager(c *gin.Context) {
	wagerID, ok := wagerParam(c)
	if !ok {
		return
	}

	wager, assets, err := h.wagers.GetWager(c.Request.Context(), wagerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"wager": wager, "assets": assets}})
}

// GetWagerEvents handles GET /v1/wagers/:id/events
func (h *Handler) GetWagerEvents(c *gin.Context) {
	wagerID, ok := wagerParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	wagerEvents, err := h.wagers.GetWagerEvents(c.Request.Context(), wagerID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"events": wagerEvents}})
}

// MarkAssetDisposed handles POST /v1/wagers/:id/assets/:assetId/dispose
func (h *Handler) MarkAssetDisposed(c *gin.Context) {
	wagerID, ok := wagerParam(c)
	if !ok {
		return
	}

	if err := h.wagers.MarkAssetDisposed(c.Request.Context(), wagerID, c.Param("assetId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type updateAssetValueRequest struct {
	CurrentValue int64 `json:"current_value"`
}

// UpdateAssetValue handles PUT /v1/wagers/:id/assets/:assetId/value
func (h *Handler) UpdateAssetValue(c *gin.Context) {
	wagerID, ok := wagerParam(c)
	if !ok {
		return
	}

	var req updateAssetValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.wagers.UpdateAssetValue(c.Request.Context(), wagerID, c.Param("assetId"), req.CurrentValue); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetActiveWagers handles GET /v1/parties/:id/wagers
func (h *Handler) GetActiveWagers(c *gin.Context) {
	wagers, err := h.wagers.GetActiveWagersByParty(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"wagers": wagers}})
}

// GetStats handles GET /v1/parties/:id/stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.wagers.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"stats": stats}})
}

// GetEscrow handles GET /v1/escrows/:id
func (h *Handler) GetEscrow(c *gin.Context) {
	account, err := h.escrow.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"escrow": account}})
}

type confirmFundingRequest struct {
	Side       models.WagerSide `json:"side" binding:"required"`
	PaymentRef string           `json:"payment_ref"`
}

// ConfirmFunding handles POST /v1/escrows/:id/confirm-funding
func (h *Handler) ConfirmFunding(c *gin.Context) {
	var req confirmFundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Side != models.SideCreator && req.Side != models.SideOpponent {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "invalid_request", "message": "side must be CREATOR or OPPONENT"},
		})
		return
	}

	account, err := h.escrow.ConfirmFunding(c.Request.Context(), c.Param("id"), req.Side, req.PaymentRef)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"escrow": account}})
}

type previewBalanceRequest struct {
	Creator  stakeProposal `json:"creator" binding:"required"`
	Opponent stakeProposal `json:"opponent" binding:"required"`
}

// PreviewBalance handles POST /v1/balance/preview. It runs the pure balance
// check without touching any wager.
func (h *Handler) PreviewBalance(c *gin.Context) {
	var req previewBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := service.BalanceStakes(req.Creator.toModel(), req.Opponent.toModel())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"balance": result}})
}

func wagerParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "invalid_request", "message": "wager id must be an integer"},
		})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   gin.H{"code": "invalid_request", "message": err.Error()},
	})
}

// respondError maps service errors to HTTP responses. Business errors keep
// their detail; anything else becomes an opaque 500.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		fundsErr      *service.InsufficientFundsError
		unbalancedErr *service.UnbalancedStakesError
		transitionErr *service.InvalidTransitionError
	)

	switch {
	case errors.Is(err, service.ErrWagerNotFound), errors.Is(err, service.ErrEscrowNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "not_found", "message": err.Error()},
		})
	case errors.Is(err, service.ErrWagerNotAvailable):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   gin.H{"code": "wager_not_available", "message": err.Error()},
		})
	case errors.Is(err, service.ErrEscrowConflict):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   gin.H{"code": "escrow_conflict", "message": err.Error()},
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   gin.H{"code": "invalid_transition", "message": err.Error()},
		})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   gin.H{"code": "validation_error", "message": err.Error()},
		})
	case errors.As(err, &fundsErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error": gin.H{
				"code":      "insufficient_funds",
				"message":   err.Error(),
				"party_id":  fundsErr.PartyID,
				"shortfall": fundsErr.Shortfall,
			},
		})
	case errors.As(err, &unbalancedErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error": gin.H{
				"code":        "unbalanced_stakes",
				"message":     err.Error(),
				"required_by": unbalancedErr.RequiredBy,
				"amount":      unbalancedErr.Amount,
				"suggestions": unbalancedErr.Suggestions,
			},
		})
	default:
		log.WithError(err).Error("Internal error handling request")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "internal_error", "message": "internal server error"},
		})
	}
}
