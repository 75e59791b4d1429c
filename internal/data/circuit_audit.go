package data

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"CrateScout/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// CircuitAuditEventType is the action recorded in circuit_audit_logs.
type CircuitAuditEventType string

const (
	// CircuitAuditBroken is logged when the circuit opens from Closed
	CircuitAuditBroken CircuitAuditEventType = "CIRCUIT_BROKEN"

	// CircuitAuditRecovered is logged when a half-open trial closes the circuit
	CircuitAuditRecovered CircuitAuditEventType = "CIRCUIT_RECOVERED"
)

// String returns the string representation of CircuitAuditEventType
func (e CircuitAuditEventType) String() string {
	return string(e)
}

const auditBufferSize = 1000

// CircuitAuditLog is the GORM model for the circuit_audit_logs table.
type CircuitAuditLog struct {
	ID         string    `gorm:"primaryKey;column:id;type:char(26)"`
	Breaker    string    `gorm:"column:breaker;type:varchar(64);not null;index"`
	ActionType string    `gorm:"column:action_type;type:varchar(50);not null"`
	Details    string    `gorm:"column:details;type:json"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for GORM
func (CircuitAuditLog) TableName() string {
	return "circuit_audit_logs"
}

// CircuitAuditLogger persists circuit events to MySQL from a background goroutine.
// Events are dropped, never blocked on, when the buffer is full or no database is configured.
type CircuitAuditLogger struct {
	db      *gorm.DB
	logChan chan *CircuitAuditLog
	wg      sync.WaitGroup
	logger  *log.Helper

	mu     sync.RWMutex
	closed bool
}

// NewCircuitAuditLogger creates the audit logger. The cleanup drains queued events.
func NewCircuitAuditLogger(db *gorm.DB, logger log.Logger) (*CircuitAuditLogger, func(), error) {
	al := &CircuitAuditLogger{
		db:     db,
		logger: log.NewHelper(log.With(logger, "module", "data/circuit_audit")),
	}

	if db != nil {
		al.logChan = make(chan *CircuitAuditLog, auditBufferSize)
		al.wg.Add(1)
		go al.start()
	}

	return al, al.Close, nil
}

// Close stops accepting events and waits for queued ones to be written.
func (a *CircuitAuditLogger) Close() {
	a.mu.Lock()
	if !a.closed && a.logChan != nil {
		close(a.logChan)
	}
	a.closed = true
	a.mu.Unlock()

	a.wg.Wait()
}

func (a *CircuitAuditLogger) start() {
	defer a.wg.Done()

	for event := range a.logChan {
		if err := a.db.WithContext(context.Background()).Create(event).Error; err != nil {
			a.logger.Errorw("msg", "failed to write circuit audit log",
				"breaker", event.Breaker,
				"action_type", event.ActionType,
				"error", err)
		} else {
			a.logger.Debugw("msg", "circuit audit log written",
				"breaker", event.Breaker,
				"action_type", event.ActionType)
		}
	}
}

// NotifyCircuitBroken records a circuit broken event.
func (a *CircuitAuditLogger) NotifyCircuitBroken(_ context.Context, event *model.CircuitBrokenEvent) error {
	a.enqueue(event.Breaker, CircuitAuditBroken, map[string]interface{}{
		"failure_count":     event.FailureCount,
		"circuit_broken_at": event.BrokenAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// NotifyCircuitRecovered records a circuit recovered event.
func (a *CircuitAuditLogger) NotifyCircuitRecovered(_ context.Context, event *model.CircuitRecoveredEvent) error {
	a.enqueue(event.Breaker, CircuitAuditRecovered, map[string]interface{}{
		"recover_time_seconds": event.RecoverTime.Seconds(),
		"probe_count":          event.ProbeCount,
	})
	return nil
}

func (a *CircuitAuditLogger) enqueue(breaker string, action CircuitAuditEventType, details map[string]interface{}) {
	if a.logChan == nil {
		return
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Errorw("msg", "failed to marshal circuit audit details", "error", err)
		return
	}

	now := time.Now().UTC()
	event := &CircuitAuditLog{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Breaker:    breaker,
		ActionType: action.String(),
		Details:    string(detailsJSON),
		CreatedAt:  now,
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return
	}

	select {
	case a.logChan <- event:
	default:
		a.logger.Warnw("msg", "circuit audit channel full, dropping event",
			"breaker", breaker,
			"action_type", event.ActionType)
	}
}
