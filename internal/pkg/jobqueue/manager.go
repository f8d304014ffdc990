package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Sweeper is the maintenance hook the manager drives periodically. The sync
// service implements it over the record store.
type Sweeper interface {
	RunRetrySweep(ctx context.Context) error
	RunCleanup(ctx context.Context) error
}

// Manager owns the job queue and its background maintenance tasks. It is
// explicitly constructed and injected; there is no process-global instance.
type Manager struct {
	queue         *Queue
	sweeper       Sweeper
	retryTicker   *time.Ticker
	cleanupTicker *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool

	retryInterval   time.Duration
	cleanupInterval time.Duration
}

// NewManager creates a manager for the given queue. The sweeper may be nil
// when maintenance is driven externally (tests, one-off tools).
func NewManager(queue *Queue, sweeper Sweeper) *Manager {
	return &Manager{
		queue:           queue,
		sweeper:         sweeper,
		stopCh:          make(chan struct{}),
		retryInterval:   2 * time.Minute,
		cleanupInterval: 1 * time.Hour,
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	if m.sweeper != nil {
		m.retryTicker = time.NewTicker(m.retryInterval)
		m.wg.Add(1)
		go m.retryWorker()

		m.cleanupTicker = time.NewTicker(m.cleanupInterval)
		m.wg.Add(1)
		go m.cleanupWorker()
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.retryTicker != nil {
		m.retryTicker.Stop()
	}
	if m.cleanupTicker != nil {
		m.cleanupTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// retryWorker periodically re-drives failed sync events below the retry ceiling
func (m *Manager) retryWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started retry worker (interval: %s)", m.retryInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Retry worker stopping")
			return
		case <-m.retryTicker.C:
			log.Debug("[JobQueue Manager] Running retry sweep for failed sync events")
			if err := m.sweeper.RunRetrySweep(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Retry sweep error: %v", err)
			}
		}
	}
}

// cleanupWorker periodically purges terminal records past their retention window
func (m *Manager) cleanupWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started cleanup worker (interval: %s)", m.cleanupInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Cleanup worker stopping")
			return
		case <-m.cleanupTicker.C:
			if err := m.sweeper.RunCleanup(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Cleanup error: %v", err)
			}
		}
	}
}
