package models

import "time"

const ChannelSMS = "sms"

// NotificationRecord marks a reminder as delivered. Its existence for a key is
// the only signal that the appointment was already notified.
type NotificationRecord struct {
	Key       string    `gorm:"column:notification_key;type:varchar(128);primaryKey" json:"key"`
	SentAt    time.Time `gorm:"not null;index" json:"sentAt"`
	PatientID string    `gorm:"type:varchar(64);index;not null" json:"patientId"`
	Phone     string    `gorm:"type:varchar(20)" json:"phone"`
	Message   string    `gorm:"type:text" json:"message"`
	Channel   string    `gorm:"type:varchar(20)" json:"channel"` // sms
}

func (NotificationRecord) TableName() string {
	return "sent_notifications"
}
