package api

import (
	"github.com/veriflowhq/veriflow/internal/batch"
	"github.com/veriflowhq/veriflow/internal/queue"
	"github.com/veriflowhq/veriflow/internal/tasks"
	"github.com/veriflowhq/veriflow/internal/workload"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Tasks    tasks.System
	Queue    *queue.Service
	Batch    *batch.Coordinator
	Workload *workload.Service
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	taskSystem := tasks.New(
		runtime.Database.Connection(),
		runtime.Events,
		runtime.Metrics,
		runtime.Logger,
		runtime.Pagination,
	)

	queueService := queue.New(
		taskSystem,
		runtime.Events,
		runtime.Metrics,
		runtime.Logger,
		runtime.Review.StatsRefreshDuration(),
		runtime.Review.SweepIntervalDuration(),
	)

	batchCoordinator := batch.New(
		taskSystem,
		batch.NewAutoAccept(taskSystem, runtime.Review.AutoAcceptConfidence),
		runtime.Events,
		runtime.Metrics,
		runtime.Logger,
		runtime.Review.BatchConcurrency,
		runtime.Review.TaskEstimateDuration(),
	)

	workloadService := workload.New(
		taskSystem,
		runtime.Logger,
		runtime.Review.ReviewerCapacity,
		runtime.Review.WorkloadWindowDuration(),
		runtime.Review.WorkloadRefreshDuration(),
	)

	return &Domain{
		Tasks:    taskSystem,
		Queue:    queueService,
		Batch:    batchCoordinator,
		Workload: workloadService,
	}
}
