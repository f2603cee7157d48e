// Package pipeline runs media-transformation jobs in the background: split,
// metadata generation, clip extraction, face-recognition clips and join.
// Each job gets a scratch
// directory under the executor's temp dir and records its progress in the
// job store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"clipforge/config"
	"clipforge/facerec"
	"clipforge/jobstore"
	"clipforge/store"

	"github.com/lithammer/shortuuid/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Transcoder is the media-tool surface the pipelines need.
type Transcoder interface {
	Probe(ctx context.Context, source string) (float64, error)
	Cut(ctx context.Context, source string, startSec, durSec float64, outPath string) error
	Concat(ctx context.Context, paths []string, outPath string) error
}

// Describer generates clip-candidate documents for a media reference.
type Describer interface {
	GenerateWithRetry(ctx context.Context, prompt, mediaRef, model string) (string, error)
}

// FaceFinder detects scenes featuring known faces in a stored video.
type FaceFinder interface {
	FindScenes(ctx context.Context, videoRef string, castPhotoRefs []string) ([]facerec.Scene, error)
}

// errStopped aborts a pipeline when its stop flag has been raised.
var errStopped = errors.New("job stopped by request")

type jobState struct {
	stop atomic.Bool
}

type jobRun struct {
	id    string
	req   Request
	state *jobState
}

type Executor struct {
	cfg       *config.Config
	jobs      jobstore.Store
	gateway   store.Gateway
	media     Transcoder
	describer Describer
	faces     FaceFinder

	tempDir        string
	jobQueue       chan *jobRun
	concurrencySem chan struct{}
	running        sync.Map // job ID -> *jobState
}

func NewExecutor(cfg *config.Config, jobs jobstore.Store, gateway store.Gateway, media Transcoder, describer Describer, faces FaceFinder) (*Executor, error) {
	tempDir := cfg.TempDir
	if tempDir == "" {
		dir, err := os.MkdirTemp("", "clipforge_jobs_")
		if err != nil {
			return nil, fmt.Errorf("create job temp dir: %w", err)
		}
		tempDir = dir
	}

	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Executor{
		cfg:            cfg,
		jobs:           jobs,
		gateway:        gateway,
		media:          media,
		describer:      describer,
		faces:          faces,
		tempDir:        tempDir,
		jobQueue:       make(chan *jobRun, 100), // Buffered queue
		concurrencySem: make(chan struct{}, concurrency),
	}, nil
}

func (e *Executor) Start(ctx context.Context) {
	log.Println("Job executor started. Concurrency limit:", cap(e.concurrencySem))
	go e.workerLoop(ctx)
}

// workerLoop pulls jobs from the queue and processes them
func (e *Executor) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("Worker loop shutting down.")
			return
		case jr := <-e.jobQueue:
			// Wait for a free processing slot
			e.concurrencySem <- struct{}{}
			go func(jr *jobRun) {
				defer func() { <-e.concurrencySem }() // Release slot
				e.processJob(ctx, jr)
			}(jr)
		}
	}
}

// Submit validates the request, registers a pending job record and queues the
// job for background execution. The returned ID is immediately pollable.
func (e *Executor) Submit(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	id := shortuuid.New()
	if err := e.jobs.Create(ctx, id); err != nil {
		return "", fmt.Errorf("register job: %w", err)
	}

	jr := &jobRun{id: id, req: req, state: &jobState{}}
	e.running.Store(id, jr.state)
	e.jobQueue <- jr
	log.Printf("Job %s (%s) submitted to queue.", id, req.pipelineName())
	return id, nil
}

// Stop raises the advisory stop flag on a queued or running job. The job
// finishes its current step, runs its cleanup path and is marked failed.
func (e *Executor) Stop(ctx context.Context, id string) error {
	val, ok := e.running.Load(id)
	if !ok {
		job, err := e.jobs.Read(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("cannot stop job in state: %s", job.Status)
	}

	val.(*jobState).stop.Store(true)
	log.Printf("Stop requested for job %s.", id)
	return nil
}

// processJob handles the execution of a single job
func (e *Executor) processJob(ctx context.Context, jr *jobRun) {
	defer e.running.Delete(jr.id)

	// A panicking pipeline must never take the executor down or leave the
	// job record stuck in progress.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Job %s panicked: %v", jr.id, r)
			e.writeStatus(jr.id, jobstore.StatusFailed, fmt.Sprintf("An unexpected error terminated the job: %v", r))
		}
	}()

	if jr.state.stop.Load() {
		log.Printf("Job %s was stopped before processing.", jr.id)
		e.writeStatus(jr.id, jobstore.StatusFailed, errStopped.Error())
		return
	}

	if err := e.checkResources(); err != nil {
		log.Printf("Job %s rejected: %v", jr.id, err)
		e.writeStatus(jr.id, jobstore.StatusFailed, err.Error())
		return
	}

	scratch := filepath.Join(e.tempDir, jr.id)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		e.writeStatus(jr.id, jobstore.StatusFailed, fmt.Sprintf("could not create working directory: %v", err))
		return
	}
	defer os.RemoveAll(scratch)

	log.Printf("Processing job %s (%s)", jr.id, jr.req.pipelineName())

	var err error
	switch req := jr.req.(type) {
	case SplitRequest:
		err = e.runSplit(ctx, jr, req, scratch)
	case MetadataRequest:
		err = e.runMetadata(ctx, jr, req, scratch)
	case ClipsRequest:
		err = e.runClips(ctx, jr, req, scratch)
	case FaceClipsRequest:
		err = e.runFaceClips(ctx, jr, req, scratch)
	case JoinRequest:
		err = e.runJoin(ctx, jr, req, scratch)
	default:
		err = fmt.Errorf("unknown pipeline request %T", jr.req)
	}

	if err != nil {
		log.Printf("Job %s failed: %v", jr.id, err)
		e.writeStatus(jr.id, jobstore.StatusFailed, err.Error())
		return
	}
	log.Printf("Job %s completed.", jr.id)
}

func (e *Executor) progress(id, details string) {
	e.writeStatus(id, jobstore.StatusInProgress, details)
}

func (e *Executor) complete(id, details string, opts ...jobstore.WriteOption) {
	e.writeStatus(id, jobstore.StatusCompleted, details, opts...)
}

// writeStatus records a state transition. A write refused because the job
// already reached a terminal state is not an error here.
func (e *Executor) writeStatus(id string, status jobstore.Status, details string, opts ...jobstore.WriteOption) {
	err := e.jobs.Write(context.Background(), id, status, details, opts...)
	if err != nil && !errors.Is(err, jobstore.ErrTerminal) {
		log.Printf("Could not record status for job %s: %v", id, err)
	}
}

// checkResources verifies that the system has enough free resources to start
// a new job. Thresholds set to zero disable the corresponding check.
func (e *Executor) checkResources() error {
	// CPU
	if e.cfg.ThrottleCPU > 0 {
		p, err := cpu.Percent(time.Second, false)
		if err != nil {
			log.Printf("Warning: could not get CPU usage: %v", err)
		} else if len(p) > 0 && p[0] > (100.0-e.cfg.ThrottleCPU) {
			return fmt.Errorf("not enough idle CPU. Current usage: %.2f%%, Idle threshold: %.2f%%", p[0], e.cfg.ThrottleCPU)
		}
	}

	// Memory
	if e.cfg.ThrottleFreeMem > 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			log.Printf("Warning: could not get memory usage: %v", err)
		} else if vm.Available < uint64(e.cfg.ThrottleFreeMem) {
			return fmt.Errorf("not enough free memory. Available: %d, Required: %d", vm.Available, e.cfg.ThrottleFreeMem)
		}
	}

	// Disk
	if e.cfg.ThrottleFreeDisk > 0 {
		d, err := disk.Usage(e.tempDir)
		if err != nil {
			log.Printf("Warning: could not get disk usage for %s: %v", e.tempDir, err)
		} else if d.Free < uint64(e.cfg.ThrottleFreeDisk) {
			return fmt.Errorf("not enough free disk space. Available: %d, Required: %d", d.Free, e.cfg.ThrottleFreeDisk)
		}
	}
	return nil
}
