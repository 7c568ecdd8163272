package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Patient struct {
	ID    string `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name  string `gorm:"not null" json:"name"`
	Phone string `json:"phone"`

	Appointments []Appointment `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"appointments"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Initialize ID before creating, unless the caller supplied one
func (p *Patient) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

// Appointment is owned by a Patient; Position keeps the patient's list order.
type Appointment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PatientID     string    `gorm:"type:varchar(64);index;not null" json:"patientId"`
	Position      int       `gorm:"not null" json:"position"`
	Timestamp     time.Time `gorm:"not null;index" json:"timestamp"`
	NotifyEnabled bool      `gorm:"not null" json:"notifyEnabled"`
	CreatedAt     time.Time `json:"createdAt"`
}
