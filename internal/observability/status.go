package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle      Role = "IDLE"
	RolePlanning  Role = "PLANNING"
	RoleExecuting Role = "EXECUTING"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentRole   Role
	ActiveTask    string
	LastHeartbeat time.Time
	Totals        Totals
}

// Totals counts plans and step outcomes since start.
type Totals struct {
	Plans   int
	Steps   int
	Failed  int
	Denied  int
	Skipped int
}

var globalStatus = &SystemStatus{
	CurrentRole:   RoleIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(role Role, task string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentRole = role
	globalStatus.ActiveTask = task
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (Role, string, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentRole, globalStatus.ActiveTask, globalStatus.LastHeartbeat
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}

// CountPlan records that a plan was interpreted.
func CountPlan() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Totals.Plans++
}

// CountStep records one step outcome by its status name.
func CountStep(status string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	t := &globalStatus.Totals
	t.Steps++
	switch status {
	case "failed":
		t.Failed++
	case "denied":
		t.Denied++
	case "skipped":
		t.Skipped++
	}
}

func GetTotals() Totals {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.Totals
}
