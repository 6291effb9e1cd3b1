package handlers

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"settlement-backend/internal/repository"
	"settlement-backend/internal/services"
	"settlement-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// SettlementHandler exposes the destination-side operations: withdrawals,
// the trading ledger and message status polling.
type SettlementHandler struct {
	settlement *services.SettlementService
	store      repository.Store
}

func NewSettlementHandler(settlement *services.SettlementService, store repository.Store) *SettlementHandler {
	return &SettlementHandler{settlement: settlement, store: store}
}

// WithdrawHandler burns synthetic balance and dispatches the release.
// POST /api/withdrawals
func (h *SettlementHandler) WithdrawHandler(c *gin.Context) {
	var req struct {
		User           string `json:"user" binding:"required"`
		SyntheticToken string `json:"synthetic_token" binding:"required"`
		Amount         string `json:"amount" binding:"required"`
		Recipient      string `json:"recipient" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount", "details": err.Error()})
		return
	}

	messageID, err := h.settlement.RequestWithdrawal(c.Request.Context(), req.User, req.SyntheticToken, amount, req.Recipient)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message_id":      messageID,
		"synthetic_token": req.SyntheticToken,
		"amount":          req.Amount,
	})
}

// GetBalanceHandler returns the available/locked split for one token.
// GET /api/balances/:user/:token
func (h *SettlementHandler) GetBalanceHandler(c *gin.Context) {
	available, locked, err := h.settlement.GetBalance(c.Request.Context(), c.Param("user"), c.Param("token"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":            c.Param("user"),
		"synthetic_token": c.Param("token"),
		"available":       utils.FormatAmount(available),
		"locked":          utils.FormatAmount(locked),
	})
}

// ListBalancesHandler returns every ledger entry the user holds.
// GET /api/balances/:user
func (h *SettlementHandler) ListBalancesHandler(c *gin.Context) {
	entries, err := h.settlement.ListBalances(c.Request.Context(), c.Param("user"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": entries, "total": len(entries)})
}

// LockHandler moves balance from available to locked.
// POST /api/ledger/lock
func (h *SettlementHandler) LockHandler(c *gin.Context) {
	h.ledgerOp(c, h.settlement.LockBalance)
}

// UnlockHandler moves balance from locked back to available.
// POST /api/ledger/unlock
func (h *SettlementHandler) UnlockHandler(c *gin.Context) {
	h.ledgerOp(c, h.settlement.UnlockBalance)
}

func (h *SettlementHandler) ledgerOp(c *gin.Context, op func(ctx context.Context, user, token string, amount *big.Int) error) {
	var req struct {
		User           string `json:"user" binding:"required"`
		SyntheticToken string `json:"synthetic_token" binding:"required"`
		Amount         string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount", "details": err.Error()})
		return
	}

	if err := op(c.Request.Context(), req.User, req.SyntheticToken, amount); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetMessageHandler reports the processing state of a transport message,
// joining the dispatch and settlement audit trails.
// GET /api/messages/:id
func (h *SettlementHandler) GetMessageHandler(c *gin.Context) {
	messageID := c.Param("id")
	ctx := c.Request.Context()

	processed, err := h.store.IsProcessed(ctx, messageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := gin.H{"message_id": messageID, "processed": processed}

	if dispatch, err := h.store.FindDispatchByMessageID(ctx, messageID); err == nil {
		resp["dispatch"] = dispatch
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeServiceError(c, err)
		return
	}
	if settlement, err := h.store.FindSettlementByMessageID(ctx, messageID); err == nil {
		resp["settlement"] = settlement
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeServiceError(c, err)
		return
	}

	if _, ok := resp["dispatch"]; !ok {
		if _, ok := resp["settlement"]; !ok && !processed {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown message", "message_id": messageID})
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}
