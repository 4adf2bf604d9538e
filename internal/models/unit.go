package models

import "time"

// UnitType - класс возможностей юнита реагирования
type UnitType string

const (
	UnitPolice  UnitType = "police"
	UnitMedical UnitType = "medical"
	UnitFire    UnitType = "fire"
	UnitGeneral UnitType = "general"
)

// UnitStatus - статус юнита реагирования
type UnitStatus string

const (
	UnitAvailable UnitStatus = "available"
	UnitBusy      UnitStatus = "busy"
	UnitEnRoute   UnitStatus = "en_route"
)

// ResponseUnit - диспетчеризуемый ресурс. Инвариант: юнит назначен максимум
// на один нетерминальный инцидент одновременно.
type ResponseUnit struct {
	ID                string        `json:"id"`
	Type              UnitType      `json:"type"`
	Location          Location      `json:"location"`
	Status            UnitStatus    `json:"status"`
	AvgResponseTime   time.Duration `json:"avg_response_time"`
	RecentAssignments int           `json:"recent_assignments"`
}
