// Entry point: loads config, wires every component, starts the HTTP
// server and the timeout sweeper. Grounded on the teacher's own
// cmd/ark-api/main.go wiring shape (config.Load -> construct clients ->
// construct services -> build router -> start background loops ->
// ListenAndServe), generalized from the teacher's Postgres+Redis+pgx
// stack to this service's Firestore+Redis+Firebase stack.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	firebase "firebase.google.com/go/v4"
	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"ark/internal/authn"
	"ark/internal/authz"
	"ark/internal/clock"
	"ark/internal/config"
	"ark/internal/core"
	"ark/internal/geo"
	"ark/internal/geoindex"
	"ark/internal/httpapi"
	"ark/internal/manager"
	"ark/internal/matching"
	"ark/internal/moderation"
	"ark/internal/payment"
	"ark/internal/store"
	"ark/internal/store/firestorestore"
	"ark/internal/sweeper"
	"ark/internal/sysconfig"
	"ark/internal/trip"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("ARK_FIREBASE_PROJECT_ID is required")
	}

	var fbOpts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		fbOpts = append(fbOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, fbOpts...)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}
	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		log.Fatalf("firebase auth client: %v", err)
	}
	verifier := authn.NewFirebaseVerifier(authClient)

	fsClient, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID, fbOpts...)
	if err != nil {
		log.Fatalf("firestore init: %v", err)
	}
	defer fsClient.Close()
	var st store.Store = firestorestore.New(fsClient)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer redisClient.Close()
	geoIdx := geoindex.New(redisClient)

	rc := clock.RealClock{}
	sysCfg := sysconfig.New(st, rc)
	az := authz.New(st)
	matchingSvc := matching.New(st, geoIdx, sysCfg, rc)
	if cfg.Maps.APIKey != "" {
		sampler, err := geo.NewRouteSampler(cfg.Maps.APIKey)
		if err != nil {
			log.Printf("road-hazard overlap annotation disabled, maps client init failed: %v", err)
		} else {
			matchingSvc.WithHazardChecker(sampler, geoindex.NewHazardChecker(redisClient))
		}
	}
	tripSvc := trip.New(st, rc)
	paymentReader := payment.New(st)
	mgr := manager.New(st, sysCfg, tripSvc)

	var classifier moderation.Classifier = moderation.NoopClassifier{}
	if cfg.AI.GeminiKey != "" {
		gc, err := moderation.NewGeminiClassifier(ctx, cfg.AI.GeminiKey)
		if err != nil {
			log.Printf("moderation disabled, gemini init failed: %v", err)
		} else {
			classifier = gc
		}
	}

	c := core.New(st, sysCfg, az, matchingSvc, tripSvc, paymentReader, mgr, classifier, geoIdx)

	sw := sweeper.New(st, tripSvc, sysCfg, rc)
	go sw.Run(ctx)

	router := httpapi.NewRouter(c, verifier, az)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), sweeper.Budget)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
