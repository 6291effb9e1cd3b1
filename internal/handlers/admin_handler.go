package handlers

import (
	"net/http"
	"strconv"

	"settlement-backend/internal/models"
	"settlement-backend/internal/repository"
	"settlement-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler is the management surface: mappings, synthetic tokens, chain
// registration, the trust table and reconciliation.
type AdminHandler struct {
	registry   *services.RegistryService
	factory    *services.FactoryService
	settlement *services.SettlementService
	reconciler *services.ReconcilerService
	store      repository.Store
}

func NewAdminHandler(
	registry *services.RegistryService,
	factory *services.FactoryService,
	settlement *services.SettlementService,
	reconciler *services.ReconcilerService,
	store repository.Store,
) *AdminHandler {
	return &AdminHandler{
		registry:   registry,
		factory:    factory,
		settlement: settlement,
		reconciler: reconciler,
		store:      store,
	}
}

// ============================================================================
// Token mappings
// ============================================================================

type mappingRequest struct {
	SourceChainID     uint32 `json:"source_chain_id" binding:"required"`
	SourceToken       string `json:"source_token" binding:"required"`
	TargetChainID     uint32 `json:"target_chain_id" binding:"required"`
	SyntheticToken    string `json:"synthetic_token" binding:"required"`
	SourceDecimals    uint8  `json:"source_decimals"`
	SyntheticDecimals uint8  `json:"synthetic_decimals"`
}

func (r *mappingRequest) model() *models.TokenMapping {
	return &models.TokenMapping{
		SourceChainID:     r.SourceChainID,
		SourceToken:       r.SourceToken,
		TargetChainID:     r.TargetChainID,
		SyntheticToken:    r.SyntheticToken,
		SourceDecimals:    r.SourceDecimals,
		SyntheticDecimals: r.SyntheticDecimals,
	}
}

// ListMappingsHandler lists all token mappings.
// GET /api/admin/mappings
func (h *AdminHandler) ListMappingsHandler(c *gin.Context) {
	mappings, err := h.registry.ListMappings(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings, "total": len(mappings)})
}

// CreateMappingHandler registers a new token mapping.
// POST /api/admin/mappings
func (h *AdminHandler) CreateMappingHandler(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m := req.model()
	if err := h.registry.RegisterMapping(c.Request.Context(), m); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"mapping": m})
}

// UpdateMappingHandler overwrites an existing mapping.
// PUT /api/admin/mappings
func (h *AdminHandler) UpdateMappingHandler(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m := req.model()
	if err := h.registry.UpdateMapping(c.Request.Context(), m, c.GetString("admin_username")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mapping": m})
}

// ============================================================================
// Synthetic tokens
// ============================================================================

// ListSyntheticTokensHandler lists all synthetic tokens.
// GET /api/admin/tokens
func (h *AdminHandler) ListSyntheticTokensHandler(c *gin.Context) {
	tokens, err := h.store.ListSyntheticTokens(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "total": len(tokens)})
}

// CreateSyntheticTokenHandler deploys a synthetic token and its mapping.
// POST /api/admin/tokens
func (h *AdminHandler) CreateSyntheticTokenHandler(c *gin.Context) {
	if h.factory == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "this node does not run the settlement role"})
		return
	}

	var req struct {
		SourceChainID     uint32 `json:"source_chain_id" binding:"required"`
		SourceToken       string `json:"source_token" binding:"required"`
		Name              string `json:"name" binding:"required"`
		Symbol            string `json:"symbol" binding:"required"`
		SourceDecimals    uint8  `json:"source_decimals"`
		SyntheticDecimals uint8  `json:"synthetic_decimals"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	token, err := h.factory.CreateSyntheticToken(c.Request.Context(), &services.CreateSyntheticTokenInput{
		SourceChainID:     req.SourceChainID,
		SourceToken:       req.SourceToken,
		Name:              req.Name,
		Symbol:            req.Symbol,
		SourceDecimals:    req.SourceDecimals,
		SyntheticDecimals: req.SyntheticDecimals,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// ============================================================================
// Chain registration
// ============================================================================

// ListChainsHandler lists all chain configurations.
// GET /api/admin/chains
func (h *AdminHandler) ListChainsHandler(c *gin.Context) {
	chains, err := h.store.ListChainConfigs(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chains": chains, "total": len(chains)})
}

// GetChainHandler gets a single chain configuration.
// GET /api/admin/chains/:chain_id
func (h *AdminHandler) GetChainHandler(c *gin.Context) {
	chainID, err := strconv.ParseUint(c.Param("chain_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chain ID"})
		return
	}

	chain, err := h.store.GetChainConfig(c.Request.Context(), uint32(chainID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chain": chain})
}

// UpsertChainHandler registers or updates a chain configuration.
// PUT /api/admin/chains
func (h *AdminHandler) UpsertChainHandler(c *gin.Context) {
	var req struct {
		DomainID         uint32 `json:"domain_id" binding:"required"`
		Mailbox          string `json:"mailbox" binding:"required"`
		DisplayName      string `json:"display_name" binding:"required"`
		BlockTimeHintSec uint16 `json:"block_time_hint_sec"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cfg := &models.ChainConfig{
		DomainID:         req.DomainID,
		Mailbox:          req.Mailbox,
		DisplayName:      req.DisplayName,
		BlockTimeHintSec: req.BlockTimeHintSec,
		UpdatedBy:        c.GetString("admin_username"),
	}
	if err := h.store.UpsertChainConfig(c.Request.Context(), cfg); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chain": cfg})
}

// ============================================================================
// Trust table
// ============================================================================

// ListBalanceManagersHandler lists the origin-domain trust table.
// GET /api/admin/balance-managers
func (h *AdminHandler) ListBalanceManagersHandler(c *gin.Context) {
	if h.settlement == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "this node does not run the settlement role"})
		return
	}
	managers, err := h.settlement.ListChainBalanceManagers(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance_managers": managers, "total": len(managers)})
}

// SetBalanceManagerHandler registers the trusted locker for an origin
// domain.
// PUT /api/admin/balance-managers
func (h *AdminHandler) SetBalanceManagerHandler(c *gin.Context) {
	if h.settlement == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "this node does not run the settlement role"})
		return
	}

	var req struct {
		OriginDomain  uint32 `json:"origin_domain" binding:"required"`
		LockerAddress string `json:"locker_address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.settlement.SetChainBalanceManager(c.Request.Context(), req.OriginDomain, req.LockerAddress, c.GetString("admin_username")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SettlementConfigHandler returns the settlement manager's raw mailbox
// binding for operator audit, the settlement-side counterpart of the
// per-locker config endpoint.
// GET /api/admin/settlement/config
func (h *AdminHandler) SettlementConfigHandler(c *gin.Context) {
	if h.settlement == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "this node does not run the settlement role"})
		return
	}

	domain, mailboxAddr := h.settlement.MailboxConfig()
	resp := gin.H{
		"chain_id":        h.settlement.ChainID(),
		"manager_address": h.settlement.Address(),
		"mailbox_domain":  domain,
		"mailbox":         mailboxAddr,
	}
	managers, err := h.settlement.ListChainBalanceManagers(c.Request.Context())
	if err != nil {
		resp["balance_managers"] = nil
		resp["balance_managers_error"] = err.Error()
	} else {
		resp["balance_managers"] = managers
	}
	c.JSON(http.StatusOK, resp)
}

// ============================================================================
// Reconciliation
// ============================================================================

// ReconcileDiffHandler previews the corrections needed to match the
// submitted expected state. Read-only.
// POST /api/admin/reconcile/diff
func (h *AdminHandler) ReconcileDiffHandler(c *gin.Context) {
	var expected services.ExpectedState
	if err := c.ShouldBindJSON(&expected); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	corrections, err := h.reconciler.Diff(c.Request.Context(), &expected)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"corrections": corrections, "total": len(corrections)})
}

// ReconcileApplyHandler applies a reviewed set of corrections.
// POST /api/admin/reconcile/apply
func (h *AdminHandler) ReconcileApplyHandler(c *gin.Context) {
	var req struct {
		Corrections []*services.Correction `json:"corrections" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.reconciler.Apply(c.Request.Context(), req.Corrections, c.GetString("admin_username")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "applied": len(req.Corrections)})
}
