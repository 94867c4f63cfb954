package models

import "time"

// Log is the persisted form of an application log entry.
type Log struct {
	AppId        string    `bson:"app_id" json:"app_id"`
	Message      string    `bson:"message" json:"message"`
	Level        string    `bson:"level" json:"level"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	Caller       string    `bson:"caller,omitempty" json:"caller,omitempty"`
	DashboardID  string    `bson:"dashboard_id,omitempty" json:"dashboard_id,omitempty"`
	WidgetID     string    `bson:"widget_id,omitempty" json:"widget_id,omitempty"`
	IpAddress    string    `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
