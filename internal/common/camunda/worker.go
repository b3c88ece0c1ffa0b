package camunda

import (
	"sync"

	"chatbot-parser/internal/common/config"
	"chatbot-parser/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler processes one activated job and reports the outcome itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Manager opens one job worker per enabled task type and closes them together.
type Manager struct {
	client  zbc.Client
	cfg     *config.Config
	logger  logger.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewManager(client zbc.Client, cfg *config.Config, log logger.Logger) *Manager {
	return &Manager{
		client:  client,
		cfg:     cfg,
		logger:  log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a worker for taskType unless it is disabled in config. It
// reports whether a worker was opened.
func (m *Manager) Start(taskType string, handler JobHandler) bool {
	if !config.IsWorkerEnabled(m.cfg, taskType) {
		m.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[taskType]; exists {
		return false
	}

	wc := config.GetWorkerConfig(m.cfg, taskType)
	if wc.MaxJobsActive == 0 {
		wc.MaxJobsActive = m.cfg.Camunda.MaxJobsActive
	}

	jw := m.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wc.MaxJobsActive).
		Timeout(config.GetDuration(wc.Timeout)).
		Name(m.cfg.App.Name).
		Open()

	m.workers[taskType] = jw
	m.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wc.MaxJobsActive,
		"timeout":       wc.Timeout,
	})
	return true
}

// Running returns the number of open workers.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// Close stops every worker and waits for in-flight jobs.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for taskType, jw := range m.workers {
		m.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		jw.Close()
		jw.AwaitClose()
		delete(m.workers, taskType)
	}
}
