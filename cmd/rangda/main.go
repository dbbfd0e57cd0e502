package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/layer-3/rangda/adapters/events"
	"github.com/layer-3/rangda/adapters/generator"
	"github.com/layer-3/rangda/adapters/oracle"
	"github.com/layer-3/rangda/adapters/sessions"
	"github.com/layer-3/rangda/adapters/store"
	"github.com/layer-3/rangda/adapters/tokenizer"
	"github.com/layer-3/rangda/config"
	"github.com/layer-3/rangda/internal/fieldcrypt"
	"github.com/layer-3/rangda/internal/logging"
	"github.com/layer-3/rangda/ports"
	"github.com/layer-3/rangda/service"
	transport "github.com/layer-3/rangda/transport/http"
	"github.com/layer-3/rangda/traits"
)

func main() {
	log := logging.NewLoggerWithService("rangda")
	config.LoadEnv(log)
	cfg := config.Load()

	// Credentials are verified only by this process, so an ephemeral signing
	// key is fine: a restart invalidates outstanding credentials along with
	// the in-memory sessions they are bound to.
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		log.WithError(err).Fatal("Failed to generate signing key")
	}

	// Optional Redis backing for revocation state and session events.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to parse Redis URL")
		}
		redisClient = redis.NewClient(opts)
	}

	var denylist ports.Denylist
	var eventPub ports.EventPublisher
	if redisClient != nil {
		denylist = store.NewRedisDenylist(redisClient)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			log.WithError(err).Fatal("Failed to create event publisher")
		}
		eventPub = events.NewWatermillPublisher(publisher)
	} else {
		log.Warn("REDIS_URL not set, running with in-memory revocation state and no session events")
		denylist = store.NewMemoryDenylist()
	}

	// Ownership oracle: a real contract over JSON-RPC, or the in-memory fake
	// for local development.
	var ownership ports.OwnershipOracle
	if cfg.RPCURL != "" {
		if !common.IsHexAddress(cfg.ContractAddress) {
			log.Fatal("CONTRACT_ADDRESS must be set to a valid address when RPC_URL is configured")
		}
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Ethereum RPC")
		}
		ownership, err = oracle.NewERC721Oracle(client, common.HexToAddress(cfg.ContractAddress), cfg.OracleTimeout)
		if err != nil {
			log.WithError(err).Fatal("Failed to create ownership oracle")
		}
	} else {
		log.Warn("RPC_URL not set, using in-memory ownership oracle")
		ownership = oracle.NewMemoryOracle()
	}
	cached := oracle.NewCached(ownership, cfg.OwnershipCacheTTL)

	if cfg.TraitSalt == "" {
		log.Fatal("TRAIT_SALT is required, personas must be stable across restarts")
	}
	var cipher *fieldcrypt.Cipher
	if cfg.MasterSecret != "" {
		cipher, err = fieldcrypt.Derive([]byte(cfg.MasterSecret), "token-metadata")
		if err != nil {
			log.WithError(err).Fatal("Failed to derive metadata cipher")
		}
	}
	resolver := traits.NewResolver([]byte(cfg.TraitSalt), cipher)

	sessionStore := sessions.NewMemoryStore(cfg.IdleTimeout, cfg.SweepInterval)
	sessionStore.Start(log)

	jwtTokenizer := tokenizer.NewJWTTokenizer(signKey, denylist, cfg.CredentialTTL)

	authService := service.NewAuthService(cached, jwtTokenizer, sessionStore, resolver, eventPub, log, service.Config{
		ChallengeTTL:  cfg.ChallengeTTL,
		IdleTimeout:   cfg.IdleTimeout,
		MessageWindow: cfg.MessageWindow,
		SwitchLimit:   cfg.SwitchLimit,
		SwitchWindow:  cfg.SwitchWindow,
		OracleTimeout: cfg.OracleTimeout,
	})

	gen := generator.NewOpenAIClient(cfg.GeneratorURL, cfg.GeneratorKey, cfg.GeneratorModel, cfg.GenerateTimeout)
	chatService := service.NewChatService(sessionStore, gen, log, cfg.IdleTimeout, cfg.MessageWindow, cfg.GenerateTimeout)

	router := transport.SetupRouter(authService, chatService)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.ListenAddr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Server exited with error")
	}
	sessionStore.Stop()
}
