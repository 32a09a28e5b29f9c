package models

// ProgramType описывает вид программы.
type ProgramType string

const (
	ProgramTypeRental ProgramType = "rental_program"
	ProgramTypeAgent  ProgramType = "agent_program"
)

// ProgramStatus представляет статус программы
type ProgramStatus string

const (
	ProgramStatusScheduled ProgramStatus = "scheduled"
	ProgramStatusActive    ProgramStatus = "active"
	ProgramStatusPaused    ProgramStatus = "paused"
	ProgramStatusEnded     ProgramStatus = "ended"
	ProgramStatusArchived  ProgramStatus = "archived"
	ProgramStatusCanceled  ProgramStatus = "canceled"
)

// DiscountType описывает тип скидки на модель транспорта.
type DiscountType string

const (
	DiscountTypeFixed      DiscountType = "fixed"
	DiscountTypePercentage DiscountType = "percentage"
)

// ModelDiscount задаёт скидку программы на одну модель транспорта.
type ModelDiscount struct {
	ModelID       string       `json:"modelId"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue float64      `json:"discountValue"`
}

// StationTarget привязывает программу к станции проката.
type StationTarget struct {
	StationID string `json:"stationId"`
}

// Program представляет нормализованный документ программы.
// Временные поля хранятся в миллисекундах epoch, как в исходных документах;
// отсутствующее значение означает открытую границу.
type Program struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	Type              ProgramType     `json:"type"`
	CreatedByUserID   string          `json:"createdByUserId,omitempty"`
	CreatedByRole     string          `json:"createdByRole,omitempty"`
	CompanyID         *string         `json:"companyId,omitempty"`
	StationTargets    []StationTarget `json:"stationTargets"`
	ModelDiscounts    []ModelDiscount `json:"modelDiscounts"`
	StartDate         *int64          `json:"startDate,omitempty"`
	EndDate           *int64          `json:"endDate,omitempty"`
	Status            ProgramStatus   `json:"status,omitempty"`
	IsActive          bool            `json:"isActive"`
	ParticipantsCount int             `json:"participantsCount"`
	OrdersCount       int             `json:"ordersCount"`
	CreatedAt         *int64          `json:"createdAt,omitempty"`
	UpdatedAt         *int64          `json:"updatedAt,omitempty"`
	EndedAt           *int64          `json:"endedAt,omitempty"`
	ArchivedAt        *int64          `json:"archivedAt,omitempty"`
	CanceledAt        *int64          `json:"canceledAt,omitempty"`
}

// ProgramFilter задаёт фильтры выборки программ.
type ProgramFilter struct {
	Type       *ProgramType
	CompanyID  *string
	ActiveOnly bool
	Limit      int
	Offset     int
}
