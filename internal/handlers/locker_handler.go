package handlers

import (
	"net/http"
	"strconv"

	"settlement-backend/internal/services"
	"settlement-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// LockerHandler exposes the balance locker operations for every source
// chain this process serves.
type LockerHandler struct {
	lockers map[uint32]*services.LockerService
}

func NewLockerHandler(lockers map[uint32]*services.LockerService) *LockerHandler {
	return &LockerHandler{lockers: lockers}
}

func (h *LockerHandler) locker(c *gin.Context, chainID uint32) (*services.LockerService, bool) {
	locker, ok := h.lockers[chainID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no locker serves this chain", "chain_id": chainID})
		return nil, false
	}
	return locker, true
}

func chainIDParam(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("chain_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chain ID"})
		return 0, false
	}
	return uint32(id), true
}

// DepositHandler locks funds and dispatches the deposit message.
// POST /api/deposits
func (h *LockerHandler) DepositHandler(c *gin.Context) {
	var req struct {
		ChainID   uint32 `json:"chain_id" binding:"required"`
		Caller    string `json:"caller" binding:"required"`
		Token     string `json:"token" binding:"required"`
		Amount    string `json:"amount" binding:"required"`
		Recipient string `json:"recipient" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	locker, ok := h.locker(c, req.ChainID)
	if !ok {
		return
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount", "details": err.Error()})
		return
	}

	messageID, err := locker.Deposit(c.Request.Context(), req.Caller, req.Token, amount, req.Recipient)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message_id": messageID,
		"chain_id":   req.ChainID,
		"amount":     req.Amount,
	})
}

// ListTokensHandler returns the deposit whitelist for a chain.
// GET /api/lockers/:chain_id/tokens
func (h *LockerHandler) ListTokensHandler(c *gin.Context) {
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	locker, ok := h.locker(c, chainID)
	if !ok {
		return
	}

	tokens, err := locker.ListTokens(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "total": len(tokens)})
}

// AddTokenHandler whitelists a token for deposit.
// POST /api/admin/lockers/:chain_id/tokens
func (h *LockerHandler) AddTokenHandler(c *gin.Context) {
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	locker, ok := h.locker(c, chainID)
	if !ok {
		return
	}

	var req struct {
		Token    string `json:"token" binding:"required"`
		Decimals uint8  `json:"decimals"`
		Symbol   string `json:"symbol"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	addedBy := c.GetString("admin_username")
	if err := locker.AddToken(c.Request.Context(), req.Token, req.Decimals, req.Symbol, addedBy); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chain_id": chainID, "token": req.Token})
}

// RemoveTokenHandler removes a token from the whitelist.
// DELETE /api/admin/lockers/:chain_id/tokens/:token
func (h *LockerHandler) RemoveTokenHandler(c *gin.Context) {
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	locker, ok := h.locker(c, chainID)
	if !ok {
		return
	}

	if err := locker.RemoveToken(c.Request.Context(), c.Param("token")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chain_id": chainID, "token": c.Param("token")})
}

// UpdateDestinationHandler rebinds the locker to a settlement manager.
// PUT /api/admin/lockers/:chain_id/destination
func (h *LockerHandler) UpdateDestinationHandler(c *gin.Context) {
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	locker, ok := h.locker(c, chainID)
	if !ok {
		return
	}

	var req struct {
		DestinationDomain uint32 `json:"destination_domain" binding:"required"`
		SettlementManager string `json:"settlement_manager" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updatedBy := c.GetString("admin_username")
	if err := locker.UpdateDestination(c.Request.Context(), req.DestinationDomain, req.SettlementManager, updatedBy); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chain_id": chainID})
}

// LockerConfigHandler returns the raw mailbox and destination bindings for
// operator audit.
// GET /api/admin/lockers/:chain_id/config
func (h *LockerHandler) LockerConfigHandler(c *gin.Context) {
	chainID, ok := chainIDParam(c)
	if !ok {
		return
	}
	locker, ok := h.locker(c, chainID)
	if !ok {
		return
	}

	domain, mailboxAddr := locker.MailboxConfig()
	resp := gin.H{
		"chain_id":       locker.ChainID(),
		"locker_address": locker.Address(),
		"mailbox_domain": domain,
		"mailbox":        mailboxAddr,
	}
	dest, err := locker.DestinationConfig(c.Request.Context())
	if err != nil {
		resp["destination"] = nil
		resp["destination_error"] = err.Error()
	} else {
		resp["destination"] = dest
	}
	c.JSON(http.StatusOK, resp)
}
