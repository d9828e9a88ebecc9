package models

import "time"

// AuditLog is an append-only trail entry. Column names follow the logs sheet layout
// (Timestamp, Usuario, Acción, Detalles, IP, UserAgent).
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp string    `gorm:"size:32;not null" json:"timestamp"`
	User      string    `gorm:"column:actor;size:255;not null;index" json:"user"`
	Action    string    `gorm:"size:64;not null;index" json:"action"`
	Details   string    `gorm:"type:text" json:"details"`
	IP        string    `gorm:"size:64" json:"ip"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}
