package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/certify-services/configs"
	"github.com/avvvet/certify-services/internal/batchsvc"
	"github.com/avvvet/certify-services/internal/certdoc"
	certconfig "github.com/avvvet/certify-services/internal/certsvc/config"
	pg "github.com/avvvet/certify-services/internal/certsvc/db"
	"github.com/avvvet/certify-services/internal/certsvc/service"
	"github.com/avvvet/certify-services/internal/certsvc/store"
	"github.com/avvvet/certify-services/internal/chain"
	natscli "github.com/avvvet/certify-services/internal/nats"
	"github.com/avvvet/certify-services/internal/notify"
	"github.com/avvvet/certify-services/internal/pinning"
)

const SERVICE_NAME = "batch"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
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

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatIDs)
	if err != nil {
		log.Errorf("Failed to initialize Telegram notifier: %v", err)
	}

	// pg connection
	dbpool, err := pg.Connect(cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pg.ClosePool()
	if err := pg.EnsureSchema(ctx, dbpool); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	registry, err := chain.Dial(ctx, cfg.Chain)
	if err != nil {
		log.Fatalf("Failed to connect to chain: %v", err)
	}
	defer registry.Close()
	if len(registry.Signers.Addresses()) == 0 {
		log.Warn("no signer configured, every row will fail")
	}

	pinner := pinning.NewClient(cfg.Pinata.JWT, cfg.Pinata.Gateway, pinning.WithAPIURL(cfg.Pinata.APIURL))
	renderer := certdoc.Renderer{QRAPIURL: cfg.QRAPIURL, AppBaseURL: cfg.AppBaseURL}
	certs := service.NewCertificateService(registry, registry.Logs, pinner, renderer, nil, cfg.AppURL, cfg.Chain.DeployBlock)
	issuer := service.NewBatchIssuer(certs, store.NewBatchStore(dbpool))

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer n.Conn.Close()
	log.Infof("NATS connected at %s", n.Url)

	worker := batchsvc.NewWorker(ctx, instanceId, issuer, n.Conn, notifier)

	// one queue group: each job goes to exactly one worker
	_, err = n.Conn.QueueSubscribe(natscli.BatchSubject, natscli.BatchQueueGroup, worker.HandleMessage)
	if err != nil {
		log.Fatalf("Subscribe %s error: %v", natscli.BatchSubject, err)
	}

	go worker.Heartbeat(ctx, 5*time.Second)
	log.Infof("%s service %s waiting for jobs on %s", SERVICE_NAME, instanceId, natscli.BatchSubject)

	<-ctx.Done()

	// the running job turns its remaining rows into cancelled results; drain lets
	// those results and the summary reach the API before the connection closes
	if err := n.Conn.Drain(); err != nil {
		log.Errorf("drain nats connection: %v", err)
	}
	deadline := time.Now().Add(15 * time.Second)
	for n.Conn.IsDraining() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
