// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/api"
	"github.com/dailyrecap/pipeline/internal/jobqueue"
	"github.com/dailyrecap/pipeline/internal/jobstore"
)

// jobDispatcher is the subset of *worker.Dispatcher the consume loop needs.
type jobDispatcher interface {
	ProcessJob(ctx context.Context, jobID string, day time.Time, postID string) error
}

// consumeService adapts jobqueue.Subscriber.Consume's
// func(ctx, handle)-error shape to suture.Service's Serve(ctx) error, so
// the worker loop runs under the supervisor tree alongside the HTTP server.
type consumeService struct {
	subscriber *jobqueue.Subscriber
	handle     func(ctx context.Context, jobID string) error
}

func newConsumeService(subscriber *jobqueue.Subscriber, handle func(ctx context.Context, jobID string) error) *consumeService {
	return &consumeService{subscriber: subscriber, handle: handle}
}

func (c *consumeService) Serve(ctx context.Context) error {
	return c.subscriber.Consume(ctx, c.handle)
}

func (c *consumeService) String() string { return "job-consumer" }

// jobHandler replays a dequeued job's stored day/post_id pair through the
// dispatcher's synchronous pipeline.
func jobHandler(dispatcher jobDispatcher, jobs *jobstore.Store) func(ctx context.Context, jobID string) error {
	return func(ctx context.Context, jobID string) error {
		job, err := jobs.Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("worker: load job %s: %w", jobID, err)
		}
		var req api.JobRequest
		if err := json.Unmarshal(job.RequestData, &req); err != nil {
			return fmt.Errorf("worker: unmarshal job %s request data: %w", jobID, err)
		}
		day, err := time.Parse("2006-01-02", req.Day)
		if err != nil {
			return fmt.Errorf("worker: parse job %s day: %w", jobID, err)
		}
		return dispatcher.ProcessJob(ctx, jobID, day, req.PostID)
	}
}
