package liveness_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/agentfleet/coordinator/internal/domain/liveness"
)

func TestClassifyAgent(t *testing.T) {
	now := time.Now()
	online, recent := 5*time.Minute, time.Hour

	tests := []struct {
		name string
		age  time.Duration
		want AgentStatus
	}{
		{"just seen", 0, AgentOnline},
		{"at online boundary", online, AgentOnline},
		{"just past online boundary", online + time.Second, AgentRecentlyActive},
		{"at recent boundary", recent, AgentRecentlyActive},
		{"just past recent boundary", recent + time.Second, AgentOffline},
		{"long stale", 24 * time.Hour, AgentOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lastSeen := now.Add(-tt.age)
			assert.Equal(t, tt.want, ClassifyAgent(lastSeen, now, online, recent))
		})
	}
}

func TestClassifyAvailability(t *testing.T) {
	tests := []struct {
		name      string
		status    AgentStatus
		holdsTask bool
		want      Availability
	}{
		{"online and idle", AgentOnline, false, AvailabilityIdle},
		{"online but holds a task", AgentOnline, true, AvailabilityWorking},
		{"recently active but holds a task still counts as working", AgentRecentlyActive, true, AvailabilityWorking},
		{"recently active and free is offline for assignment", AgentRecentlyActive, false, AvailabilityOffline},
		{"offline and free", AgentOffline, false, AvailabilityOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAvailability(tt.status, tt.holdsTask))
		})
	}
}

func TestClassifyService(t *testing.T) {
	now := time.Now()
	stale := 90 * time.Second

	assert.False(t, ClassifyService(now.Add(-10*time.Second), now, stale), "fresh heartbeat is not stale")
	assert.False(t, ClassifyService(now.Add(-stale), now, stale), "exactly at threshold is not yet stale")
	assert.True(t, ClassifyService(now.Add(-stale-time.Second), now, stale), "past threshold is stale")
}
