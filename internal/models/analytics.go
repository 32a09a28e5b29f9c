package models

import "time"

// AnalyticsGroupBy описывает доступные варианты группировки периодов.
type AnalyticsGroupBy string

const (
	AnalyticsGroupNone  AnalyticsGroupBy = "none"
	AnalyticsGroupDay   AnalyticsGroupBy = "day"
	AnalyticsGroupWeek  AnalyticsGroupBy = "week"
	AnalyticsGroupMonth AnalyticsGroupBy = "month"
)

// AnalyticsFilter задает временной интервал и параметры агрегации.
type AnalyticsFilter struct {
	From           time.Time
	To             time.Time
	GroupBy        AnalyticsGroupBy
	TopLimit       int
	IncludePeriods bool
}

// ProgramKPIs описывает показатели программ за период.
type ProgramKPIs struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	ParticipantsCount int             `json:"participants_count"`
	BookingsCount     int             `json:"bookings_count"`
	DiscountTotal     float64         `json:"discount_total"`
	CommissionTotal   float64         `json:"commission_total"`
	TopPrograms       []TopProgram    `json:"top_programs"`
	Periods           []ProgramPeriod `json:"periods,omitempty"`
	GeneratedAt       time.Time       `json:"generated_at"`
	GroupBy           string          `json:"group_by,omitempty"`
}

// TopProgram описывает программу с наибольшим числом участников за период.
type TopProgram struct {
	ProgramID     string  `json:"program_id"`
	Participants  int     `json:"participants"`
	Bookings      int     `json:"bookings"`
	DiscountTotal float64 `json:"discount_total"`
}

// ProgramPeriod хранит агрегированные метрики по периоду.
type ProgramPeriod struct {
	Period        string  `json:"period"`
	BookingsCount int     `json:"bookings_count"`
	DiscountTotal float64 `json:"discount_total"`
}
