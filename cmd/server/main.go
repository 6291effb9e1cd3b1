package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settlement-backend/internal/config"
	"settlement-backend/internal/db"
	"settlement-backend/internal/events"
	"settlement-backend/internal/handlers"
	"settlement-backend/internal/models"
	"settlement-backend/internal/repository"
	"settlement-backend/internal/router"
	"settlement-backend/internal/services"
	"settlement-backend/internal/transport"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("LOG_LEVEL") == "debug" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	cfg := config.AppConfig

	store := buildStore(cfg)
	seedChainConfigs(store, cfg)

	// Transport authenticity is enforced per recipient: the settlement
	// manager checks senders against its trust table and lockers check
	// against their destination binding. The transport module itself stays
	// permissive here.
	security := transport.NoopSecurityModule{}

	mailboxes, natsMailboxes, err := buildMailboxes(cfg, security)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up transport")
	}

	chanPub := events.NewChanPublisher(256)
	publisher := events.Publisher(chanPub)
	if cfg.Transport.Mode == "nats" && cfg.Transport.NATS.Events {
		natsPub, err := events.NewNATSPublisher(cfg.Transport.NATS.URL)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect event publisher")
		}
		defer natsPub.Close()
		publisher = events.MultiPublisher{chanPub, natsPub}
	}

	lockers := make(map[uint32]*services.LockerService, len(cfg.Lockers))
	for _, lc := range cfg.Lockers {
		mailbox := mailboxes[lc.DomainID]
		locker := services.NewLockerService(store, mailbox, publisher, lc.DomainID, lc.Address)
		mailbox.Register(locker.Address(), locker)
		lockers[lc.DomainID] = locker
		logrus.WithFields(logrus.Fields{
			"domain":  lc.DomainID,
			"address": locker.Address(),
		}).Info("balance locker registered")
	}

	var settlement *services.SettlementService
	var factory *services.FactoryService
	if cfg.Settlement.Enabled {
		mailbox := mailboxes[cfg.Settlement.DomainID]
		settlement = services.NewSettlementService(store, mailbox, publisher, cfg.Settlement.DomainID, cfg.Settlement.Manager)
		mailbox.Register(settlement.Address(), settlement)
		factory = services.NewFactoryService(store, cfg.Settlement.DomainID, cfg.Settlement.Manager)
		logrus.WithFields(logrus.Fields{
			"domain":  cfg.Settlement.DomainID,
			"address": settlement.Address(),
		}).Info("settlement manager registered")
	}

	registry := services.NewRegistryService(store, publisher)
	reconciler := services.NewReconcilerService(store, publisher)

	for _, mb := range natsMailboxes {
		if err := mb.Start(); err != nil {
			logrus.WithError(err).Fatal("failed to start NATS mailbox")
		}
		defer mb.Close()
	}

	wsHandler := handlers.NewWebSocketHandler()
	go wsHandler.Run(chanPub)

	h := &router.Handlers{
		Admin:     handlers.NewAdminHandler(registry, factory, settlement, reconciler, store),
		AdminAuth: handlers.NewAdminAuthHandler(),
		WebSocket: wsHandler,
	}
	if len(lockers) > 0 {
		h.Locker = handlers.NewLockerHandler(lockers)
	}
	if settlement != nil {
		h.Settlement = handlers.NewSettlementHandler(settlement, store)
	}

	engine := router.SetupRouter(h, logrus.StandardLogger())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logrus.WithField("addr", addr).Info("settlement backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("forced shutdown")
	}
}

func buildStore(cfg *config.Config) repository.Store {
	switch cfg.Database.Driver {
	case "memory":
		logrus.Info("using in-memory store")
		return repository.NewMemoryStore()
	default:
		db.InitDB()
		return repository.NewGormStore(db.DB)
	}
}

// seedChainConfigs writes the statically configured chains into the chain
// configuration table so diagnostics and reconciliation see them.
func seedChainConfigs(store repository.Store, cfg *config.Config) {
	ctx := context.Background()
	for _, chain := range cfg.Chains {
		err := store.UpsertChainConfig(ctx, &models.ChainConfig{
			DomainID:         chain.DomainID,
			Mailbox:          chain.Mailbox,
			DisplayName:      chain.DisplayName,
			BlockTimeHintSec: chain.BlockTimeHintSec,
			UpdatedBy:        "startup",
		})
		if err != nil {
			logrus.WithError(err).WithField("domain", chain.DomainID).Warn("failed to seed chain config")
		}
	}
}

// buildMailboxes creates one mailbox per served domain. Local mode joins
// every domain over an in-process network; NATS mode gives each domain its
// own JetStream endpoint.
func buildMailboxes(cfg *config.Config, security transport.SecurityModule) (map[uint32]transport.Mailbox, []*transport.NATSMailbox, error) {
	domains := make(map[uint32]string)
	for _, lc := range cfg.Lockers {
		domains[lc.DomainID] = mailboxAddr(lc.Mailbox, lc.Address)
	}
	if cfg.Settlement.Enabled {
		domains[cfg.Settlement.DomainID] = mailboxAddr(cfg.Settlement.Mailbox, cfg.Settlement.Manager)
	}

	mailboxes := make(map[uint32]transport.Mailbox, len(domains))
	if cfg.Transport.Mode == "local" {
		network := transport.NewLocalNetwork()
		for domain, addr := range domains {
			mailboxes[domain] = network.AddDomain(domain, addr, security)
		}
		return mailboxes, nil, nil
	}

	var natsMailboxes []*transport.NATSMailbox
	for domain, addr := range domains {
		mb, err := transport.NewNATSMailbox(cfg.Transport.NATS.URL, domain, addr, security)
		if err != nil {
			return nil, nil, err
		}
		mailboxes[domain] = mb
		natsMailboxes = append(natsMailboxes, mb)
	}
	return mailboxes, natsMailboxes, nil
}

func mailboxAddr(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
