package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/database"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/logger"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// optionCatalog выбирает справочные сущности пакетами по идентификаторам.
// Реализуется CatalogService.
type optionCatalog interface {
	GetCompaniesByIDs(ctx context.Context, ids []string) (map[string]*models.Company, error)
	GetStationsByIDs(ctx context.Context, ids []string) (map[string]*models.Station, error)
	GetVehicleModelsByIDs(ctx context.Context, ids []string) (map[string]*models.VehicleModel, error)
}

// OptionService строит списки опций для форм агента по активным
// программам, в которых он состоит. Неразрешимые идентификаторы молча
// исключаются: опция без подписи бесполезна для формы.
type OptionService struct {
	db      *database.DB
	catalog optionCatalog
	log     *logger.Logger
}

// NewOptionService создает новый экземпляр сервиса опций
func NewOptionService(db *database.DB, catalog optionCatalog, log *logger.Logger) *OptionService {
	return &OptionService{
		db:      db,
		catalog: catalog,
		log:     log,
	}
}

// BuildAgentOptions собирает опции по активным программам агента
func (s *OptionService) BuildAgentOptions(ctx context.Context, agentUserID string) (*models.AgentOptions, error) {
	programs, err := s.joinedActivePrograms(ctx, agentUserID)
	if err != nil {
		return nil, err
	}

	companyIDs := map[string]struct{}{}
	stationIDs := map[string]struct{}{}
	modelIDs := map[string]struct{}{}
	for _, p := range programs {
		if p.CompanyID != nil {
			companyIDs[*p.CompanyID] = struct{}{}
		}
		for _, target := range p.StationTargets {
			stationIDs[target.StationID] = struct{}{}
		}
		for _, discount := range p.ModelDiscounts {
			modelIDs[discount.ModelID] = struct{}{}
		}
	}

	companies, err := s.catalog.GetCompaniesByIDs(ctx, keys(companyIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve companies: %w", err)
	}
	stations, err := s.catalog.GetStationsByIDs(ctx, keys(stationIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stations: %w", err)
	}
	vehicleModels, err := s.catalog.GetVehicleModelsByIDs(ctx, keys(modelIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vehicle models: %w", err)
	}

	collator := collate.New(language.Vietnamese, collate.IgnoreCase)

	options := &models.AgentOptions{
		Programs:          make([]models.Option, 0, len(programs)),
		Companies:         make([]models.Option, 0, len(companies)),
		VehicleModels:     make([]models.Option, 0, len(vehicleModels)),
		StationsByCompany: make(map[string][]models.Option),
		GeneratedAt:       time.Now(),
	}

	for _, p := range programs {
		label := p.Title
		if label == "" {
			label = p.ID
		}
		options.Programs = append(options.Programs, models.Option{Value: p.ID, Label: label})
	}
	for _, company := range companies {
		options.Companies = append(options.Companies, models.Option{Value: company.ID, Label: company.Name})
	}
	for _, model := range vehicleModels {
		options.VehicleModels = append(options.VehicleModels, models.Option{Value: model.ID, Label: model.Name})
	}

	seenStations := map[string]map[string]struct{}{}
	for _, p := range programs {
		for _, target := range p.StationTargets {
			station, ok := stations[target.StationID]
			if !ok {
				continue
			}
			if seenStations[station.CompanyID] == nil {
				seenStations[station.CompanyID] = map[string]struct{}{}
			}
			if _, dup := seenStations[station.CompanyID][station.ID]; dup {
				continue
			}
			seenStations[station.CompanyID][station.ID] = struct{}{}
			options.StationsByCompany[station.CompanyID] = append(options.StationsByCompany[station.CompanyID],
				models.Option{Value: station.ID, Label: station.Name})
		}
	}

	sortOptions(collator, options.Programs)
	sortOptions(collator, options.Companies)
	sortOptions(collator, options.VehicleModels)
	for _, stationOptions := range options.StationsByCompany {
		sortOptions(collator, stationOptions)
	}

	return options, nil
}

// joinedActivePrograms возвращает действующие программы, в которых
// состоит агент.
func (s *OptionService) joinedActivePrograms(ctx context.Context, agentUserID string) ([]*models.Program, error) {
	query := `
		SELECT p.id, p.doc
		FROM programs p
		JOIN program_participants pp ON pp.program_id = p.id
		WHERE pp.user_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, agentUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get joined programs: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var programs []*models.Program
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan joined program: %w", err)
		}

		var doc map[string]interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			s.log.WithError(err).WithField("program_id", id).Warn("Skipping unreadable program document")
			continue
		}

		program := NormalizeProgramDoc(id, doc)
		if !IsProgramActiveNow(program, now) {
			continue
		}
		programs = append(programs, program)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate joined programs: %w", err)
	}

	return programs, nil
}

func sortOptions(collator *collate.Collator, options []models.Option) {
	sort.SliceStable(options, func(i, j int) bool {
		return collator.CompareString(options[i].Label, options[j].Label) < 0
	})
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
