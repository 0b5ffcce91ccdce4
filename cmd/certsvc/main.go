package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	config "github.com/avvvet/certify-services/configs"
	"github.com/avvvet/certify-services/internal/certdoc"
	"github.com/avvvet/certify-services/internal/certsvc/broker"
	certconfig "github.com/avvvet/certify-services/internal/certsvc/config"
	pg "github.com/avvvet/certify-services/internal/certsvc/db"
	"github.com/avvvet/certify-services/internal/certsvc/handlers"
	"github.com/avvvet/certify-services/internal/certsvc/service"
	"github.com/avvvet/certify-services/internal/certsvc/store"
	"github.com/avvvet/certify-services/internal/certsvc/ws"
	"github.com/avvvet/certify-services/internal/chain"
	mongodb "github.com/avvvet/certify-services/internal/db"
	natscli "github.com/avvvet/certify-services/internal/nats"
	"github.com/avvvet/certify-services/internal/pinning"
)

const SERVICE_NAME = "cert"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg, err := certconfig.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	certconfig.LogConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// pg connection
	dbpool, err := pg.Connect(cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pg.ClosePool()
	if err := pg.EnsureSchema(ctx, dbpool); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Printf("pg connection established successfully")

	// activity log is optional
	var activity service.ActivityRecorder
	if cfg.MongoURI != "" {
		mdb, err := mongodb.ConnectToDB(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer mdb.Client().Disconnect(context.Background())
		if err := mongodb.CreateTTLIndexForCollection(ctx, mdb, store.ActivityCollection); err != nil {
			log.Warnf("activity TTL index: %v", err)
		}
		activity = store.NewActivityStore(mdb, cfg.ActivityTTL)
		log.Info("mongodb activity log enabled")
	} else {
		log.Warn("MONGODB_URI not set, activity log disabled")
	}

	registry, err := chain.Dial(ctx, cfg.Chain)
	if err != nil {
		log.Fatalf("Failed to connect to chain: %v", err)
	}
	defer registry.Close()
	log.Infof("registry %s, signers %v", registry.Address.Hex(), registry.Signers.Addresses())

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME + "-service")
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// websocket state and the broker that feeds it
	s := ws.NewWs()
	b := broker.NewBroker(n.Conn, s.Send, s.GetWatchers)

	sub, err := b.Subscribe(natscli.CertSubject)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", natscli.CertSubject, err)
	}
	defer sub.Unsubscribe()

	pinner := pinning.NewClient(cfg.Pinata.JWT, cfg.Pinata.Gateway, pinning.WithAPIURL(cfg.Pinata.APIURL))
	renderer := certdoc.Renderer{QRAPIURL: cfg.QRAPIURL, AppBaseURL: cfg.AppBaseURL}
	batchStore := store.NewBatchStore(dbpool)

	sessions := service.NewSessionService(registry, activity)
	certs := service.NewCertificateService(registry, registry.Logs, pinner, renderer, activity, cfg.AppURL, cfg.Chain.DeployBlock)
	verify := service.NewVerifyService(registry, registry.Logs, cfg.AppURL, cfg.ExplorerURL)
	students := service.NewStudentService(registry, registry.Logs)
	if cfg.Pinata.Gateway != "" {
		verify.UseGateway(pinner.GatewayURL)
		students.UseGateway(pinner.GatewayURL)
	}

	svc := handlers.Services{
		Sessions:      sessions,
		Organizations: service.NewOrganizationService(registry, activity),
		Certificates:  certs,
		Verify:        verify,
		Students:      students,
		Analytics:     service.NewAnalyticsService(certs, registry),
		Batches:       service.NewBatchService(batchStore, b, registry, activity),
		Activity:      service.NewActivityService(activity),
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	h := handlers.NewHandler(svc, handlers.NewTokenAuth(cfg.JWTSecret), cfg.JWTTTL, s, b.ActiveWorkers)
	h.SetRoutes(r)

	// no write timeout: issuance waits for the transaction to be mined
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if n := sessions.PurgeExpired(); n > 0 {
					log.Debugf("purged %d expired login nonces", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("%s service stopped with error: %v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
