package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrailSessionTransitions(t *testing.T) {
	tests := []struct {
		from, to TrailSessionStatus
		want     bool
	}{
		{TrailSessionActive, TrailSessionPaused, true},
		{TrailSessionActive, TrailSessionCompleted, true},
		{TrailSessionActive, TrailSessionAbandoned, true},
		{TrailSessionActive, TrailSessionActive, false},
		{TrailSessionPaused, TrailSessionActive, true},
		{TrailSessionPaused, TrailSessionCompleted, true},
		{TrailSessionCompleted, TrailSessionActive, false},
		{TrailSessionCompleted, TrailSessionAbandoned, false},
		{TrailSessionAbandoned, TrailSessionActive, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestEquipmentTypeValid(t *testing.T) {
	for _, e := range []EquipmentType{EquipmentTreadmill, EquipmentBike, EquipmentRower,
		EquipmentElliptical, EquipmentSmartTrainer, EquipmentHeartRateMonitor} {
		assert.True(t, e.Valid(), e)
	}
	assert.False(t, EquipmentType("toaster").Valid())
	assert.False(t, EquipmentType("").Valid())
}

func TestCanScheduleSessions(t *testing.T) {
	assert.True(t, ClubRoleAdmin.CanScheduleSessions())
	assert.True(t, ClubRoleModerator.CanScheduleSessions())
	assert.False(t, ClubRoleMember.CanScheduleSessions())
}
