// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command server runs the daily recap pipeline: the admin/webhook HTTP
// surface, the background job worker, and the daily scheduler, all under
// one suture supervisor tree.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/dailyrecap/pipeline/internal/api"
	"github.com/dailyrecap/pipeline/internal/artifactstore"
	"github.com/dailyrecap/pipeline/internal/cache"
	"github.com/dailyrecap/pipeline/internal/config"
	"github.com/dailyrecap/pipeline/internal/contentitem"
	"github.com/dailyrecap/pipeline/internal/drafter"
	"github.com/dailyrecap/pipeline/internal/errtrack"
	"github.com/dailyrecap/pipeline/internal/events"
	"github.com/dailyrecap/pipeline/internal/jobqueue"
	"github.com/dailyrecap/pipeline/internal/jobstore"
	"github.com/dailyrecap/pipeline/internal/logging"
	"github.com/dailyrecap/pipeline/internal/manifest"
	"github.com/dailyrecap/pipeline/internal/metrics"
	"github.com/dailyrecap/pipeline/internal/scheduler"
	"github.com/dailyrecap/pipeline/internal/security"
	"github.com/dailyrecap/pipeline/internal/supervisor"
	"github.com/dailyrecap/pipeline/internal/supervisor/services"
	"github.com/dailyrecap/pipeline/internal/transcribe"
	"github.com/dailyrecap/pipeline/internal/worker"
)

const serviceVersion = "0.1.0"

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		panic("config: " + err.Error())
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	log := logging.Logger()
	log.Info().Str("version", serviceVersion).Msg("starting daily recap pipeline")

	metrics.AppInfo.WithLabelValues(serviceVersion, runtime.Version()).Set(1)
	startedAt := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics.AppUptime.Set(time.Since(startedAt).Seconds())
		}
	}()

	artifacts, err := artifactstore.Open(cfg.ArtifactStore.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open artifact store")
	}
	defer artifacts.Close()

	jobs, err := jobstore.Open(cfg.JobStore.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open job store")
	}
	defer jobs.Close()

	var embedded *jobqueue.EmbeddedServer
	if cfg.JobQueue.EmbeddedServer {
		embedded, err = startEmbeddedQueue(cfg.JobQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("start embedded job queue")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			embedded.Shutdown(ctx) //nolint:errcheck
		}()
	}
	queueURL := cfg.JobQueue.URL
	if embedded != nil {
		queueURL = embedded.ClientURL()
	}

	wmLogger := watermill.NewStdLogger(false, false)

	publisherCB := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "jobqueue-publish",
		Timeout: 30 * time.Second,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition("jobqueue-publish", int(from), int(to))
		},
	})
	publisher, err := jobqueue.NewPublisher(jobqueue.PublisherConfig{
		URL:             queueURL,
		MaxReconnects:   10,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		TrackMsgID:      true,
	}, wmLogger, publisherCB)
	if err != nil {
		log.Fatal().Err(err).Msg("create job queue publisher")
	}
	defer publisher.Close() //nolint:errcheck

	subscriber, err := jobqueue.NewSubscriber(jobqueue.SubscriberConfig{
		URL:              queueURL,
		StreamName:       cfg.JobQueue.StreamName,
		DurableName:      cfg.JobQueue.DurableName,
		QueueGroup:       cfg.JobQueue.SubjectPrefix,
		SubscribersCount: cfg.JobQueue.SubscribersCount,
		MaxDeliver:       cfg.JobQueue.MaxDeliver,
		MaxAckPending:    256,
		AckWaitTimeout:   cfg.JobQueue.AckWait,
		CloseTimeout:     10 * time.Second,
	}, wmLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("create job queue subscriber")
	}
	defer subscriber.Close() //nolint:errcheck

	// Managers built directly on the artifact store, via the adapters that
	// translate its *Object/*Page returns to each consumer's narrow shape.
	store := newStoreAdapter(artifacts)
	items := contentitem.New(contentItemStore{store})
	correlator := events.NewCorrelator(eventStore{store})

	tz, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		tz = time.UTC
	}
	manifestBuilder := manifest.New(items, selectorPolicy(cfg), tz)

	tokenSigner := security.NewCollaboratorTokenSigner(cfg.Security.CollaboratorTokenSecret, cfg.Security.CollaboratorTokenTTL)

	draftCollaborator := newDraftCollaborator(cfg, tokenSigner)
	drafterSvc := drafter.New(asDrafterCollaborator(draftCollaborator), drafterParams(cfg))

	transcribeCollaborator := newTranscribeCollaborator(cfg, tokenSigner)
	transcribeCB := transcribe.NewCircuitBreaker("transcriber", cfg.Transcriber.CircuitMaxFailures, cfg.Transcriber.CircuitOpenDuration)
	transcriber := transcribe.New(transcriptStore{store}, asTranscribeCollaborator(transcribeCollaborator), transcribeCB)

	limiter := rate.NewLimiter(rate.Limit(cfg.Worker.CollaboratorRatePerS), cfg.Worker.CollaboratorBurst)
	dispatcher := worker.New(jobs, manifestBuilder, drafterSvc, artifacts, marshalManifest, limiter, worker.Config{
		WorkerID:     cfg.Worker.WorkerID,
		StageTimeout: cfg.Worker.StageTimeout,
		Layout:       cfg.Render.Layout,
	})

	tracker := errtrack.New()
	dedup := cache.NewBloomLRU(100_000, cfg.Twitch.DedupeWindow, 0.01)
	webhookVerifier := security.NewGitHubWebhookVerifier(cfg.GitHub.WebhookSecret)
	adminEnvelope := security.NewAdminEnvelope(cfg.Security.AdminHMACSecret)

	probes := map[string]api.CollaboratorProbe{
		"github": credentialProbe{present: cfg.GitHub.Token != ""},
		"twitch": credentialProbe{present: cfg.Twitch.ClientID != "" && cfg.Twitch.ClientSecret != ""},
	}
	if draftCollaborator != nil {
		probes["drafter"] = draftCollaborator
	} else {
		probes["drafter"] = credentialProbe{present: false}
	}
	if transcribeCollaborator != nil {
		probes["transcriber"] = transcribeCollaborator
	} else {
		probes["transcriber"] = credentialProbe{present: false}
	}

	handler := api.New(artifacts, jobs, publisher, dispatcher, transcriber, correlator, items, dedup, probes, webhookVerifier, tracker, serviceVersion)

	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(handler, adminEnvelope, mw)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	jobSpawner := newDailyJobSpawner(jobs, publisher)
	sched, err := scheduler.New(jobSpawner, newMultiProbe(probes), scheduler.Config{
		DailyCron:     cfg.Scheduler.DailyCron,
		Timezone:      tz,
		ProbeInterval: cfg.Scheduler.ProbeInterval,
		TickInterval:  cfg.Scheduler.TickInterval,
	}, zerolog.New(os.Stderr))
	if err != nil {
		log.Fatal().Err(err).Msg("build scheduler")
	}

	tree, err := supervisor.NewSupervisorTree(slog.New(slog.NewJSONHandler(os.Stderr, nil)), supervisor.DefaultTreeConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("build supervisor tree")
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))
	tree.AddMessagingService(newConsumeService(subscriber, jobHandler(dispatcher, jobs)))
	tree.AddMessagingService(services.NewSyncService(sched))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)
	log.Info().Str("addr", httpServer.Addr).Msg("serving admin API")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining supervisor tree")

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("supervisor tree exited with error")
		}
	case <-time.After(30 * time.Second):
		log.Warn().Msg("supervisor tree shutdown timed out")
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		log.Warn().Int("count", len(unstopped)).Msg("services did not stop cleanly")
	}
	log.Info().Msg("daily recap pipeline stopped")
}

// startEmbeddedQueue derives host/port for the embedded NATS server from
// the configured client URL, since JobQueueConfig carries a single
// connection URL rather than separate host/port fields.
func startEmbeddedQueue(cfg config.JobQueueConfig) (*jobqueue.EmbeddedServer, error) {
	host, port := "127.0.0.1", 4222
	if u, err := url.Parse(cfg.URL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
		if p, err := strconv.Atoi(u.Port()); err == nil && p != 0 {
			port = p
		}
	}
	return jobqueue.NewEmbeddedServer(jobqueue.EmbeddedServerConfig{
		Host:      host,
		Port:      port,
		StoreDir:  cfg.StoreDir,
		MaxMemory: cfg.MaxMemory,
		MaxStore:  cfg.MaxStore,
	})
}

// credentialProbe reports GitHub/Twitch reachability by credential
// presence rather than a live call: both collaborators reach this pipeline
// via inbound webhook/admin-API delivery, so there is no outbound endpoint
// to ping.
type credentialProbe struct {
	present bool
}

func (p credentialProbe) Ping(ctx context.Context) error {
	if !p.present {
		return errMissingCredentials
	}
	return nil
}
