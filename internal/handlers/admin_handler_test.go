package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"settlement-backend/internal/events"
	"settlement-backend/internal/repository"
	"settlement-backend/internal/services"
	"settlement-backend/internal/transport"
	"settlement-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestSettlementConfigHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	const (
		domain      uint32 = 42161
		mailboxAddr        = "0xcccc00000000000000000000000000000000cccc"
		managerAddr        = "0xbbbb00000000000000000000000000000000bbbb"
		lockerAddr         = "0xaaaa00000000000000000000000000000000aaaa"
	)

	store := repository.NewMemoryStore()
	network := transport.NewLocalNetwork()
	mailbox := network.AddDomain(domain, mailboxAddr, transport.NoopSecurityModule{})
	settlement := services.NewSettlementService(store, mailbox, events.NoopPublisher{}, domain, managerAddr)
	require.NoError(t, settlement.SetChainBalanceManager(context.Background(), 1, lockerAddr, "test"))

	h := NewAdminHandler(nil, nil, settlement, nil, store)
	router := gin.New()
	router.GET("/api/admin/settlement/config", h.SettlementConfigHandler)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/admin/settlement/config", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		ChainID        uint32 `json:"chain_id"`
		ManagerAddress string `json:"manager_address"`
		MailboxDomain  uint32 `json:"mailbox_domain"`
		Mailbox        string `json:"mailbox"`
		BalanceManagers []struct {
			OriginDomain  uint32 `json:"origin_domain"`
			LockerAddress string `json:"locker_address"`
		} `json:"balance_managers"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, domain, body.ChainID)
	require.Equal(t, utils.MustNormalizeAddress(managerAddr), body.ManagerAddress)
	require.Equal(t, domain, body.MailboxDomain)
	require.Equal(t, mailboxAddr, body.Mailbox)
	require.Len(t, body.BalanceManagers, 1)
	require.Equal(t, uint32(1), body.BalanceManagers[0].OriginDomain)
}

func TestSettlementConfigHandlerWithoutSettlementRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewAdminHandler(nil, nil, nil, nil, repository.NewMemoryStore())
	router := gin.New()
	router.GET("/api/admin/settlement/config", h.SettlementConfigHandler)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/admin/settlement/config", nil))
	require.Equal(t, http.StatusNotFound, recorder.Code)
}
