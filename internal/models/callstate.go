package models

import "time"

// CallState is the "now calling" singleton shown on every display.
type CallState struct {
	CurrentNumber int       `json:"currentNumber"`
	SystemPaused  bool      `json:"systemPaused"`
	LastResetDate string    `json:"lastResetDate"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// BusinessDayLayout formats the local event date used to scope ticket numbers.
const BusinessDayLayout = "2006-01-02"

func InitialCallState(day string, now time.Time) CallState {
	return CallState{
		CurrentNumber: 1,
		SystemPaused:  false,
		LastResetDate: day,
		UpdatedAt:     now,
	}
}
