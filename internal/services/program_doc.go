package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/metrics"
	"github.com/Tuan-Cuong-Dev/beepbeep-sub002/internal/models"
)

// Нормализация документов программ. Исторические документы хранятся в
// нескольких несовместимых форматах (массив строк, массив объектов с
// разными именами полей, объект с ключами-моделями), поэтому парсеры
// перебираются в фиксированном порядке, первый успех выигрывает, а
// нераспознанные значения сводятся к безопасным значениям по умолчанию.
// Намеренная толерантность: битые записи пропускаются, не ошибки.

// NormalizeProgramDoc преобразует сырой документ программы в Program.
// Чистая функция: не обращается к хранилищу и никогда не возвращает ошибку.
func NormalizeProgramDoc(id string, doc map[string]interface{}) *models.Program {
	p := &models.Program{
		ID:              id,
		Title:           asString(doc["title"]),
		Description:     asString(doc["description"]),
		Type:            normalizeProgramType(asString(doc["type"])),
		CreatedByUserID: asString(doc["createdByUserId"]),
		CreatedByRole:   asString(doc["createdByRole"]),
		CompanyID:       resolveCompanyID(doc),
		StationTargets:  coerceStationTargets(doc["stationTargets"]),
		ModelDiscounts:  coerceModelDiscounts(doc["modelDiscounts"], doc),
		StartDate:       toEpochMillis(doc["startDate"]),
		EndDate:         toEpochMillis(doc["endDate"]),
		IsActive:        asBoolDefault(doc["isActive"], true),
		ParticipantsCount: asInt(doc["participantsCount"]),
		OrdersCount:       asInt(doc["ordersCount"]),
		CreatedAt:         toEpochMillis(doc["createdAt"]),
		UpdatedAt:         toEpochMillis(doc["updatedAt"]),
		EndedAt:           toEpochMillis(doc["endedAt"]),
		ArchivedAt:        toEpochMillis(doc["archivedAt"]),
		CanceledAt:        toEpochMillis(doc["canceledAt"]),
	}

	if status := models.ProgramStatus(asString(doc["status"])); isKnownStatus(status) {
		p.Status = status
	} else {
		p.Status = DeriveProgramStatus(p, time.Now())
	}

	return p
}

// IsProgramActiveNow возвращает true, если программу следует считать
// действующей: флаг isActive не false, старт не в будущем, конец не в прошлом.
// Отсутствующая граница не ограничивает окно.
func IsProgramActiveNow(p *models.Program, now time.Time) bool {
	if p == nil || !p.IsActive {
		return false
	}
	nowMs := now.UnixMilli()
	if p.StartDate != nil && *p.StartDate > nowMs {
		return false
	}
	if p.EndDate != nil && *p.EndDate < nowMs {
		return false
	}
	return true
}

// DeriveProgramStatus выводит статус программы из флага активности и окна дат.
// Используется, когда в документе нет явного поля status.
func DeriveProgramStatus(p *models.Program, now time.Time) models.ProgramStatus {
	if !p.IsActive {
		return models.ProgramStatusPaused
	}
	nowMs := now.UnixMilli()
	if p.StartDate != nil && *p.StartDate > nowMs {
		return models.ProgramStatusScheduled
	}
	if p.EndDate != nil && *p.EndDate < nowMs {
		return models.ProgramStatusEnded
	}
	return models.ProgramStatusActive
}

func isKnownStatus(s models.ProgramStatus) bool {
	switch s {
	case models.ProgramStatusScheduled, models.ProgramStatusActive, models.ProgramStatusPaused,
		models.ProgramStatusEnded, models.ProgramStatusArchived, models.ProgramStatusCanceled:
		return true
	}
	return false
}

func normalizeProgramType(s string) models.ProgramType {
	if models.ProgramType(s) == models.ProgramTypeAgent {
		return models.ProgramTypeAgent
	}
	return models.ProgramTypeRental
}

// resolveCompanyID ищет компанию-владельца в порядке приоритета полей,
// первый найденный идентификатор выигрывает.
func resolveCompanyID(doc map[string]interface{}) *string {
	if id := asString(doc["companyId"]); id != "" {
		return &id
	}
	if id := asString(doc["organizerCompanyId"]); id != "" {
		return &id
	}
	if id := asString(doc["providerCompanyId"]); id != "" {
		return &id
	}
	if nested := asMap(doc["company"]); nested != nil {
		if id := asString(nested["id"]); id != "" {
			return &id
		}
	}
	if nested := asMap(doc["companyRef"]); nested != nil {
		if id := asString(nested["id"]); id != "" {
			return &id
		}
	}
	return nil
}

func coerceStationTargets(raw interface{}) []models.StationTarget {
	targets := []models.StationTarget{}
	list, ok := raw.([]interface{})
	if !ok {
		return targets
	}
	for _, el := range list {
		switch v := el.(type) {
		case string:
			if v != "" {
				targets = append(targets, models.StationTarget{StationID: v})
			}
		case map[string]interface{}:
			id := asString(v["stationId"])
			if id == "" {
				id = asString(v["id"])
			}
			if id == "" {
				if nested := asMap(v["station"]); nested != nil {
					id = asString(nested["id"])
				}
			}
			if id != "" {
				targets = append(targets, models.StationTarget{StationID: id})
			}
		}
	}
	return targets
}

// coerceModelDiscounts принимает все исторические формы поля modelDiscounts:
// массив строк (id модели), массив объектов с синонимами полей, объект с
// ключами-моделями. Если ничего не распозналось, пробуется запасной список
// models/vehicleModels на самом документе.
func coerceModelDiscounts(raw interface{}, doc map[string]interface{}) []models.ModelDiscount {
	discounts := []models.ModelDiscount{}

	switch v := raw.(type) {
	case []interface{}:
		for _, el := range v {
			switch entry := el.(type) {
			case string:
				if entry != "" {
					discounts = append(discounts, models.ModelDiscount{
						ModelID:       entry,
						DiscountType:  models.DiscountTypeFixed,
						DiscountValue: 0,
					})
				}
			case map[string]interface{}:
				modelID := modelIDFromEntry(entry)
				if modelID == "" {
					continue
				}
				discounts = append(discounts, parseDiscountEntry(entry, modelID))
			}
		}
	case map[string]interface{}:
		for key, val := range v {
			if key == "" {
				continue
			}
			switch entry := val.(type) {
			case map[string]interface{}:
				discounts = append(discounts, parseDiscountEntry(entry, key))
			default:
				if amount, ok := asFloat(val); ok {
					discounts = append(discounts, models.ModelDiscount{
						ModelID:       key,
						DiscountType:  models.DiscountTypeFixed,
						DiscountValue: amount,
					})
				} else {
					metrics.DiscountFallbacks.Inc()
					discounts = append(discounts, models.ModelDiscount{
						ModelID:       key,
						DiscountType:  models.DiscountTypeFixed,
						DiscountValue: 0,
					})
				}
			}
		}
	}

	if len(discounts) == 0 {
		discounts = fallbackModelList(doc)
	}

	return discounts
}

// fallbackModelList строит скидки fixed/0 из устаревших списков моделей.
func fallbackModelList(doc map[string]interface{}) []models.ModelDiscount {
	discounts := []models.ModelDiscount{}
	for _, field := range []string{"models", "vehicleModels"} {
		list, ok := doc[field].([]interface{})
		if !ok {
			continue
		}
		for _, el := range list {
			var id string
			switch v := el.(type) {
			case string:
				id = v
			case map[string]interface{}:
				id = modelIDFromEntry(v)
			}
			if id != "" {
				discounts = append(discounts, models.ModelDiscount{
					ModelID:       id,
					DiscountType:  models.DiscountTypeFixed,
					DiscountValue: 0,
				})
			}
		}
		if len(discounts) > 0 {
			break
		}
	}
	return discounts
}

func modelIDFromEntry(entry map[string]interface{}) string {
	for _, field := range []string{"modelId", "vehicleModelId", "id"} {
		if id := asString(entry[field]); id != "" {
			return id
		}
	}
	if nested := asMap(entry["model"]); nested != nil {
		if id := asString(nested["id"]); id != "" {
			return id
		}
	}
	if nested := asMap(entry["modelRef"]); nested != nil {
		if id := asString(nested["id"]); id != "" {
			return id
		}
	}
	return ""
}

// parseDiscountEntry извлекает тип и величину скидки, перебирая формы в
// порядке приоритета. Нераспознанная форма даёт fixed/0 и учитывается
// в метрике (см. DiscountFallbacks).
func parseDiscountEntry(entry map[string]interface{}, modelID string) models.ModelDiscount {
	// явные discountType/discountValue
	if dt := normalizeDiscountType(asString(entry["discountType"])); dt != "" {
		value, _ := asFloat(entry["discountValue"])
		return models.ModelDiscount{ModelID: modelID, DiscountType: dt, DiscountValue: value}
	}

	// числовое поле процентной скидки
	for _, field := range []string{"percentage", "pct", "off"} {
		if value, ok := asFloat(entry[field]); ok {
			return models.ModelDiscount{ModelID: modelID, DiscountType: models.DiscountTypePercentage, DiscountValue: value}
		}
	}

	// числовое поле фиксированной цены/скидки
	for _, field := range []string{"finalPrice", "price", "fixed"} {
		if value, ok := asFloat(entry[field]); ok {
			return models.ModelDiscount{ModelID: modelID, DiscountType: models.DiscountTypeFixed, DiscountValue: value}
		}
	}

	// общая пара {type, value}
	if dt := normalizeDiscountType(asString(entry["type"])); dt != "" {
		value, _ := asFloat(entry["value"])
		return models.ModelDiscount{ModelID: modelID, DiscountType: dt, DiscountValue: value}
	}

	metrics.DiscountFallbacks.Inc()
	return models.ModelDiscount{ModelID: modelID, DiscountType: models.DiscountTypeFixed, DiscountValue: 0}
}

func normalizeDiscountType(s string) models.DiscountType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "amount":
		return models.DiscountTypeFixed
	case "percentage", "percent", "pct":
		return models.DiscountTypePercentage
	}
	return ""
}

// toEpochMillis приводит значение любого поддерживаемого формата даты к
// миллисекундам epoch. Нераспознанное значение означает отсутствие границы.
func toEpochMillis(v interface{}) *int64 {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		ms := t.UnixMilli()
		return &ms
	case int64:
		return &t
	case int:
		ms := int64(t)
		return &ms
	case float64:
		ms := int64(t)
		return &ms
	case json.Number:
		if f, err := t.Float64(); err == nil {
			ms := int64(f)
			return &ms
		}
		return nil
	case map[string]interface{}:
		// форма {seconds, nanoseconds} (и вариант с подчёркиваниями)
		for _, secField := range []string{"seconds", "_seconds"} {
			if secs, ok := asFloat(t[secField]); ok {
				var nanos float64
				for _, nsField := range []string{"nanoseconds", "_nanoseconds"} {
					if ns, ok := asFloat(t[nsField]); ok {
						nanos = ns
						break
					}
				}
				ms := int64(secs)*1000 + int64(nanos)/int64(time.Millisecond)
				return &ms
			}
		}
		return nil
	case string:
		if t == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				ms := parsed.UnixMilli()
				return &ms
			}
		}
		return nil
	default:
		return nil
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asBoolDefault(v interface{}, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func asInt(v interface{}) int {
	if f, ok := asFloat(v); ok {
		return int(f)
	}
	return 0
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
		return 0, false
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
