package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	apphttp "github.com/slacktip/tipbot/pkg/app/http"
	"github.com/slacktip/tipbot/pkg/config"
	"github.com/slacktip/tipbot/pkg/engine"
	"github.com/slacktip/tipbot/pkg/ethereum"
	"github.com/slacktip/tipbot/pkg/httpapi"
	"github.com/slacktip/tipbot/pkg/ledgerstore"
	"github.com/slacktip/tipbot/pkg/notify"
	"github.com/slacktip/tipbot/pkg/pgutil"
	"github.com/slacktip/tipbot/pkg/txqueue"
	"github.com/slacktip/tipbot/pkg/wallet"
)

// reminderInterval is how often users holding unclaimed internal credit get a
// withdrawal nudge.
const reminderInterval = 24 * time.Hour

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting tip bot",
		zap.String("config", *configPath),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	store := ledgerstore.NewStore(db)

	deriver, err := wallet.NewDeriver(cfg.Wallet.Mnemonic)
	if err != nil {
		logger.Fatal("Failed to open wallet", zap.Error(err))
	}

	adminKey, err := deriver.PrivateKey(wallet.AdminIndex)
	if err != nil {
		logger.Fatal("Failed to derive admin key", zap.Error(err))
	}

	chain, err := ethereum.NewClient(&cfg.Ethereum, adminKey, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Ethereum", zap.Error(err))
	}
	defer chain.Close()

	signer := wallet.NewAuthorizationSigner(deriver, cfg.Token.Name, cfg.Token.Version,
		cfg.Ethereum.ChainID, chain.TokenAddress())

	var notifier engine.Notifier = notify.NopNotifier{}
	if cfg.Slack.BotToken != "" {
		notifier = notify.NewSlackNotifier(&cfg.Slack, logger)
	} else {
		logger.Warn("No Slack bot token configured, direct messages disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := txqueue.New(logger, cfg.Queue.Buffer)
	queue.Start(ctx)
	defer queue.Stop()

	eng := engine.New(store, chain, queue, notifier, deriver, signer,
		cfg.Ethereum.ExplorerBaseURL, logger)

	// Periodic withdrawal reminders.
	go func() {
		ticker := time.NewTicker(reminderInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := eng.SendWithdrawalReminders(ctx); err != nil {
					logger.Warn("Failed to send withdrawal reminders", zap.Error(err))
				}
			}
		}
	}()

	router := httpapi.NewRouter(eng, cfg.Auth.JWTSecret, logger)
	if err := apphttp.ServeAndWait(ctx, router, logger, &cfg.Server); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
