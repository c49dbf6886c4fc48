package models

import "time"

type Reservation struct {
	ID          int64      `json:"id"`
	TicketNo    int        `json:"ticketNo"`
	Email       string     `json:"email"`
	Count       int        `json:"count"`
	Age         string     `json:"age"`
	Status      string     `json:"status"`
	Channel     string     `json:"channel"`
	UserAgent   string     `json:"-"`
	BusinessDay string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	CalledAt    *time.Time `json:"calledAt,omitempty"`
}

const (
	AgeGeneral    = "一般"
	AgeUniversity = "大学生"
	AgeHighSchool = "高校生以下"
)

const (
	StatusNotCalled   = "未呼出"
	StatusArrived     = "来場済"
	StatusUnconfirmed = "未確認"
	StatusCancelled   = "キャンセル"
)

const (
	ChannelWeb    = "web"
	ChannelMobile = "mobile"
	ChannelTablet = "tablet"
	ChannelAdmin  = "admin"
)

var AgeGroups = []string{AgeGeneral, AgeUniversity, AgeHighSchool}

var Statuses = []string{StatusNotCalled, StatusArrived, StatusUnconfirmed, StatusCancelled}

var Channels = []string{ChannelWeb, ChannelMobile, ChannelTablet, ChannelAdmin}

const (
	MinPartySize = 1
	MaxPartySize = 10
)
