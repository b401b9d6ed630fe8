package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const sweepGuardKey = "job_cycle_sweep_scheduled"

// CycleSweeper generates the billing cycles that started since the last run.
type CycleSweeper interface {
	SweepCycles(ctx context.Context) (int, error)
}

// Manager runs the queue together with the periodic cycle sweep
type Manager struct {
	queue         *Queue
	sweepInterval time.Duration
	sweepTicker   *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

// NewManager registers the cycle sweep on the queue. A nil sweeper or a non-positive
// interval disables the periodic sweep.
func NewManager(queue *Queue, sweeper CycleSweeper, sweepInterval time.Duration) *Manager {
	m := &Manager{queue: queue, sweepInterval: sweepInterval, stopCh: make(chan struct{})}
	if sweeper != nil {
		queue.Handle(JobTypeCycleSweep, func(ctx context.Context, _ *Job) error {
			created, err := sweeper.SweepCycles(ctx)
			if err != nil {
				return err
			}
			log.Infof("[JobQueue Manager] Cycle sweep created %d cycles", created)
			return nil
		})
	} else {
		m.sweepInterval = 0
	}
	return m
}

func (m *Manager) GetQueue() *Queue {
	return m.queue
}

func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	if m.sweepInterval > 0 {
		m.sweepTicker = time.NewTicker(m.sweepInterval)
		m.wg.Add(1)
		go m.sweepWorker()
	}
}

func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	close(m.stopCh)
	m.wg.Wait()
	m.queue.Stop()
	m.running = false
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) sweepWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.sweepTicker.C:
			if _, err := m.ScheduleSweep(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Failed to schedule cycle sweep: %v", err)
			}
		}
	}
}

// ScheduleSweep enqueues a cycle sweep unless another instance already did so within
// the current interval. It reports whether a job was enqueued.
func (m *Manager) ScheduleSweep(ctx context.Context) (bool, error) {
	guard := m.sweepInterval
	if guard <= 0 {
		guard = time.Minute
	}
	ok, err := m.queue.client.SetNX(ctx, sweepGuardKey, time.Now().UTC().Format(time.RFC3339), guard).Result()
	if err != nil || !ok {
		return false, err
	}
	if _, err := m.queue.EnqueueJob(ctx, JobTypeCycleSweep, nil); err != nil {
		return false, err
	}
	return true, nil
}
