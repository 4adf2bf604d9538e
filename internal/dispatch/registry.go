package dispatch

import (
	"sync"
	"time"

	"github.com/shenikar/incident_dispatch_system/internal/models"
)

type unitEntry struct {
	mu         sync.Mutex
	unit       *models.ResponseUnit
	reservedAt time.Time
}

// Registry - реестр юнитов реагирования. Резервирование выполняется под
// per-unit локом (acquire-then-verify), чтобы два планировщика не могли
// забронировать один юнит.
type Registry struct {
	mu    sync.RWMutex
	units map[string]*unitEntry
}

// NewRegistry создает пустой реестр юнитов
func NewRegistry() *Registry {
	return &Registry{
		units: make(map[string]*unitEntry),
	}
}

// Add регистрирует юнит. Существующий юнит с тем же id заменяется.
func (r *Registry) Add(unit *models.ResponseUnit) {
	cp := *unit
	if cp.Status == "" {
		cp.Status = models.UnitAvailable
	}
	r.mu.Lock()
	r.units[cp.ID] = &unitEntry{unit: &cp}
	r.mu.Unlock()
}

// Get возвращает копию юнита по id
func (r *Registry) Get(id string) (*models.ResponseUnit, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.unit
	return &cp, true
}

// List возвращает копии всех юнитов
func (r *Registry) List() []*models.ResponseUnit {
	r.mu.RLock()
	entries := make([]*unitEntry, 0, len(r.units))
	for _, e := range r.units {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	units := make([]*models.ResponseUnit, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		cp := *e.unit
		e.mu.Unlock()
		units = append(units, &cp)
	}
	return units
}

// Reserve пытается атомарно забронировать юнит: под локом юнита проверяем,
// что он всё ещё available, и только тогда переводим в busy.
func (r *Registry) Reserve(id string) bool {
	e, ok := r.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unit.Status != models.UnitAvailable {
		return false
	}
	e.unit.Status = models.UnitBusy
	e.unit.RecentAssignments++
	e.reservedAt = time.Now()
	return true
}

// MarkEnRoute переводит забронированный юнит в en_route после фиксации
// назначения в store.
func (r *Registry) MarkEnRoute(id string) {
	e, ok := r.lookup(id)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unit.Status == models.UnitBusy {
		e.unit.Status = models.UnitEnRoute
	}
}

// Release возвращает юнит в available и обновляет скользящее среднее
// времени реакции. Вызывается store при отмене или разрешении инцидента.
func (r *Registry) Release(id string) {
	e, ok := r.lookup(id)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unit.Status == models.UnitAvailable {
		return
	}
	if !e.reservedAt.IsZero() {
		elapsed := time.Since(e.reservedAt)
		if e.unit.AvgResponseTime == 0 {
			e.unit.AvgResponseTime = elapsed
		} else {
			// Экспоненциальное сглаживание: свежие назначения весят 1/4
			e.unit.AvgResponseTime = (e.unit.AvgResponseTime*3 + elapsed) / 4
		}
		e.reservedAt = time.Time{}
	}
	e.unit.Status = models.UnitAvailable
}

// Unreserve откатывает бронь, которую не удалось зафиксировать в store.
// Статистика времени реакции не обновляется.
func (r *Registry) Unreserve(id string) {
	e, ok := r.lookup(id)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unit.Status == models.UnitBusy {
		e.unit.Status = models.UnitAvailable
		if e.unit.RecentAssignments > 0 {
			e.unit.RecentAssignments--
		}
		e.reservedAt = time.Time{}
	}
}

func (r *Registry) lookup(id string) (*unitEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.units[id]
	return e, ok
}
