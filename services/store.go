package services

import (
	"context"
	"errors"

	"clinicremind-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PatientSource is the bulk read side of the record store.
type PatientSource interface {
	ListPatients(ctx context.Context) ([]models.Patient, error)
}

// NotificationLedger persists the "already sent" markers.
type NotificationLedger interface {
	HasNotification(ctx context.Context, key string) (bool, error)
	SaveNotification(ctx context.Context, record *models.NotificationRecord) error
}

// GormStore implements PatientSource and NotificationLedger on a gorm database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ListPatients loads every patient with appointments in list order.
func (s *GormStore) ListPatients(ctx context.Context) ([]models.Patient, error) {
	var patients []models.Patient
	err := s.db.WithContext(ctx).
		Preload("Appointments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Order("created_at ASC, id ASC").
		Find(&patients).Error
	if err != nil {
		return nil, err
	}
	return patients, nil
}

func (s *GormStore) HasNotification(ctx context.Context, key string) (bool, error) {
	var record models.NotificationRecord
	err := s.db.WithContext(ctx).Select("notification_key").Where("notification_key = ?", key).Take(&record).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// SaveNotification creates the record or overwrites an existing one.
func (s *GormStore) SaveNotification(ctx context.Context, record *models.NotificationRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error
}

// ListNotifications returns up to limit records, newest first.
func (s *GormStore) ListNotifications(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	var records []models.NotificationRecord
	query := s.db.WithContext(ctx).Order("sent_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
