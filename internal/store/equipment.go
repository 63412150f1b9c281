package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

// ConnectEquipment registers a device, or refreshes it if the user already connected
// the same equipment_id. last_sync_at survives a reconnect.
func (p *Postgres) ConnectEquipment(ctx context.Context, eq *models.UserEquipment) error {
	if eq.ID == uuid.Nil {
		eq.ID = uuid.New()
	}
	if len(eq.ConnectionData) == 0 {
		eq.ConnectionData = []byte("{}")
	}
	err := p.conn(ctx).Transaction(func(tx *gorm.DB) error {
		// INSERT ... ON CONFLICT (user_id, equipment_id) DO UPDATE: connecting the same
		// device twice updates its type, name and connection data in place. last_sync_at
		// is not in the update list, so it keeps its value.
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "equipment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"equipment_type", "equipment_name", "connection_data", "connected_at"}),
		}).Create(eq).Error
		if err != nil {
			return err
		}
		// On conflict the row keeps its original id; reload so the caller sees it.
		return tx.Where("user_id = ? AND equipment_id = ?", eq.UserID, eq.EquipmentID).First(eq).Error
	})
	return wrap("connect equipment", err)
}

// ListEquipment returns the user's devices, most recently connected first.
func (p *Postgres) ListEquipment(ctx context.Context, userID uuid.UUID) ([]models.UserEquipment, error) {
	equipment := []models.UserEquipment{}
	err := p.conn(ctx).Where("user_id = ?", userID).Order("connected_at DESC").Find(&equipment).Error
	if err != nil {
		return nil, wrap("list equipment", err)
	}
	return equipment, nil
}

// DisconnectEquipment removes one of the user's devices. Stored telemetry is kept.
func (p *Postgres) DisconnectEquipment(ctx context.Context, userID uuid.UUID, equipmentID string) error {
	res := p.conn(ctx).
		Where("user_id = ? AND equipment_id = ?", userID, equipmentID).
		Delete(&models.UserEquipment{})
	if res.Error != nil {
		return wrap("disconnect equipment", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("disconnect equipment", ErrNotFound)
	}
	return nil
}

// RecordSync stores one telemetry upload. Inside a single transaction it:
//
//  1. checks the device is connected to this user (ErrEquipmentNotConnected)
//  2. for a session upload, checks the session exists and the user joined it
//  3. inserts the telemetry row and stamps the device's last_sync_at
//  4. upserts the user's session_leaderboard row with score
//
// Any failure rolls back all of it, so telemetry and standings never disagree.
func (p *Postgres) RecordSync(ctx context.Context, data *models.EquipmentWorkoutData, score int) error {
	if data.ID == uuid.Nil {
		data.ID = uuid.New()
	}
	err := p.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var connected int64
		if err := tx.Model(&models.UserEquipment{}).
			Where("user_id = ? AND equipment_id = ?", data.UserID, data.EquipmentID).
			Count(&connected).Error; err != nil {
			return err
		}
		if connected == 0 {
			return ErrEquipmentNotConnected
		}

		if data.SessionID != nil {
			var session models.GroupSession
			if err := tx.Select("id").First(&session, "id = ?", *data.SessionID).Error; err != nil {
				return err
			}
			ok, err := isParticipant(tx, *data.SessionID, data.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotParticipant
			}
		}

		if err := tx.Create(data).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.UserEquipment{}).
			Where("user_id = ? AND equipment_id = ?", data.UserID, data.EquipmentID).
			Update("last_sync_at", data.RecordedAt).Error; err != nil {
			return err
		}

		if data.SessionID == nil {
			return nil
		}

		// Each sync replaces the participant's standing with the latest totals. The
		// (session_id, user_id) primary key is the conflict target, so every participant
		// has exactly one row no matter how many uploads arrive.
		entry := models.SessionLeaderboard{
			SessionID:       *data.SessionID,
			UserID:          data.UserID,
			Score:           score,
			DistanceKm:      data.DistanceKm,
			CaloriesBurned:  data.CaloriesBurned,
			DurationSeconds: data.DurationSeconds,
			UpdatedAt:       data.RecordedAt,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "distance_km", "calories_burned", "duration_seconds", "updated_at"}),
		}).Create(&entry).Error
	})
	return wrap("record sync", err)
}
