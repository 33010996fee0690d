package main

import (
	"context"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/internal/sync/registry"
	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	"github.com/angelmondragon/channelsync-backend/pkg/logger"
	"github.com/angelmondragon/channelsync-backend/pkg/metrics"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

type handlerRegistry interface {
	Resolve(jobType enums.JobType) (registry.Handler, error)
}

type runRecorder interface {
	Ensure(ctx context.Context, desc registry.RunDescriptor) error
	MarkRunning(ctx context.Context, runID uuid.UUID) error
	MarkSucceeded(ctx context.Context, runID uuid.UUID, stats types.JSONMap) error
	MarkFailed(ctx context.Context, runID uuid.UUID, code, message string, stats types.JSONMap) error
}

type runLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// ServiceParams carries the wired dependencies for the run consumer.
type ServiceParams struct {
	Logger       *logger.Logger
	Subscription subscriber
	Registry     handlerRegistry
	Recorder     runRecorder
	Metrics      *metrics.SyncJobMetrics
	NewLock      func(integrationID uuid.UUID, jobType enums.JobType) (runLock, error)
	Now          func() time.Time
}

// Service consumes run descriptors and drives the sync engine.
type Service struct {
	logg         *logger.Logger
	subscription subscriber
	registry     handlerRegistry
	recorder     runRecorder
	metrics      *metrics.SyncJobMetrics
	newLock      func(integrationID uuid.UUID, jobType enums.JobType) (runLock, error)
	now          func() time.Time
}

// NewService validates the dependencies and builds the consumer.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Subscription == nil {
		return nil, errors.New("runs subscription is required")
	}
	if params.Registry == nil {
		return nil, errors.New("handler registry is required")
	}
	if params.Recorder == nil {
		return nil, errors.New("run recorder is required")
	}
	if params.NewLock == nil {
		return nil, errors.New("lock factory is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:         params.Logger,
		subscription: params.Subscription,
		registry:     params.Registry,
		recorder:     params.Recorder,
		metrics:      params.Metrics,
		newLock:      params.NewLock,
		now:          now,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := s.handleMessage(ctx, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (s *Service) handleMessage(ctx context.Context, data []byte) processResult {
	desc, err := registry.DecodeRunDescriptor(data)
	if err != nil {
		// A malformed descriptor never becomes valid; drop it.
		s.logg.Error(ctx, "dropping undecodable run descriptor", err)
		return processResult{}
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"run_id":         desc.RunID,
		"integration_id": desc.IntegrationID,
		"job_type":       desc.JobType,
	})
	return s.processRun(ctx, desc)
}

// processRun executes one run under the per-(integration, job type) lock.
// The dispatcher owns retries between runs, so terminal failures are recorded
// on the run row and the message is acked either way; only infrastructure
// errors nack for redelivery.
func (s *Service) processRun(ctx context.Context, desc registry.RunDescriptor) processResult {
	lock, err := s.newLock(desc.IntegrationID, desc.JobType)
	if err != nil {
		s.logg.Error(ctx, "failed to build run lock", err)
		return processResult{nack: true}
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "failed to acquire run lock", err)
		return processResult{nack: true}
	}
	if !acquired {
		// The queued run row must still reach a terminal state, so the
		// message goes back for redelivery once the lock frees up.
		s.logg.Info(ctx, "run lock held elsewhere, retrying later")
		return processResult{nack: true}
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release run lock", err)
		}
	}()

	if err := s.recorder.Ensure(ctx, desc); err != nil {
		s.logg.Error(ctx, "failed to ensure run row", err)
		return processResult{nack: true}
	}
	if err := s.recorder.MarkRunning(ctx, desc.RunID); err != nil {
		s.logg.Error(ctx, "failed to mark run running", err)
		return processResult{nack: true}
	}

	handler, err := s.registry.Resolve(desc.JobType)
	if err != nil {
		return s.finishFailed(ctx, desc, err, nil)
	}

	start := s.now()
	stats, runErr := handler.Run(ctx, desc)
	s.metrics.ObserveDuration(string(desc.JobType), s.now().Sub(start))

	if runErr != nil {
		return s.finishFailed(ctx, desc, runErr, stats)
	}

	s.metrics.IncSuccess(string(desc.JobType))
	if stats != nil {
		s.metrics.RecordFetch(string(desc.JobType),
			stats.APICalls, stats.RateLimitEvents, stats.FetchedRows, stats.PersistedRows)
	}
	if err := s.recorder.MarkSucceeded(ctx, desc.RunID, statsMap(stats)); err != nil {
		s.logg.Error(ctx, "failed to record run success", err)
		return processResult{nack: true}
	}
	s.logg.Info(ctx, "sync run succeeded")
	return processResult{}
}

func (s *Service) finishFailed(ctx context.Context, desc registry.RunDescriptor, runErr error, stats *registry.RunStats) processResult {
	code := string(pkgerrors.CodeOf(runErr))
	s.metrics.IncFailure(string(desc.JobType), code)

	dump := pkgerrors.Dump(runErr)
	fields := map[string]any{
		"error_code":  code,
		"error_chain": dump.Chain,
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_constraint"] = dump.PGConstraint
	}
	s.logg.Error(s.logg.WithFields(ctx, fields), "sync run failed", runErr)
	if err := s.recorder.MarkFailed(ctx, desc.RunID, code, runErr.Error(), statsMap(stats)); err != nil {
		s.logg.Error(ctx, "failed to record run failure", err)
		return processResult{nack: true}
	}
	return processResult{}
}

func statsMap(stats *registry.RunStats) types.JSONMap {
	if stats == nil {
		return nil
	}
	return stats.ToMap()
}
