package models

import "time"

// Option — пара (значение, подпись) для заполнения селектов в UI.
// Никогда не сохраняется.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AgentOptions содержит дедуплицированные и отсортированные списки опций,
// построенные по активным программам, в которых состоит агент.
type AgentOptions struct {
	Programs          []Option            `json:"programs"`
	Companies         []Option            `json:"companies"`
	VehicleModels     []Option            `json:"vehicle_models"`
	StationsByCompany map[string][]Option `json:"stations_by_company"`
	GeneratedAt       time.Time           `json:"generated_at"`
}
