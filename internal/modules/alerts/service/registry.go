package service

import (
	"sort"
	"sync"

	"alert_bot/internal/metrics"
	"alert_bot/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type entry struct {
	seq   uint64
	alert models.Alert
}

// Registry единственный источник правды по активным алертам. Все операции под
// одним мьютексом, наружу отдаются только копии.
type Registry struct {
	mu     sync.Mutex
	seq    uint64
	alerts map[models.AlertID]*entry
}

func NewRegistry() *Registry {
	return &Registry{alerts: make(map[models.AlertID]*entry)}
}

// Add регистрирует алерт как ACTIVE и возвращает его ID.
func (r *Registry) Add(a models.Alert) models.AlertID {
	a.ID = models.AlertID(uuid.NewString())
	a.Status = models.AlertActive

	r.mu.Lock()
	r.seq++
	r.alerts[a.ID] = &entry{seq: r.seq, alert: a}
	n := len(r.alerts)
	r.mu.Unlock()

	metrics.AlertsCreated.Inc()
	metrics.ActiveAlerts.Set(float64(n))
	return a.ID
}

func (r *Registry) Remove(id models.AlertID) bool {
	_, ok := r.Take(id)
	return ok
}

// RemoveOwned удаляет только если алерт принадлежит owner.
func (r *Registry) RemoveOwned(owner int64, id models.AlertID) bool {
	r.mu.Lock()
	e, ok := r.alerts[id]
	if !ok || e.alert.Owner != owner {
		r.mu.Unlock()
		return false
	}
	delete(r.alerts, id)
	n := len(r.alerts)
	r.mu.Unlock()

	metrics.ActiveAlerts.Set(float64(n))
	return true
}

// Take атомарно забирает алерт. Из двух конкурентных вызовов успех получит ровно один.
func (r *Registry) Take(id models.AlertID) (models.Alert, bool) {
	r.mu.Lock()
	e, ok := r.alerts[id]
	if ok {
		delete(r.alerts, id)
	}
	n := len(r.alerts)
	r.mu.Unlock()

	if !ok {
		return models.Alert{}, false
	}
	metrics.ActiveAlerts.Set(float64(n))
	return e.alert, true
}

func (r *Registry) ListActive(owner int64) []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(a *models.Alert) bool { return a.Owner == owner })
}

// ForEachActive снимок всех активных алертов в порядке создания.
func (r *Registry) ForEachActive() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(nil)
}

// ObservePrices запоминает последнюю увиденную цену для алертов по символам из таблицы.
func (r *Registry) ObservePrices(prices map[models.Symbol]decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.alerts {
		px, ok := prices[e.alert.Symbol]
		if !ok {
			continue
		}
		p := px
		e.alert.LastObservedPrice = &p
	}
}

// Symbols символы, по которым есть хоть один активный алерт.
func (r *Registry) Symbols() []models.Symbol {
	r.mu.Lock()
	set := make(map[models.Symbol]struct{}, len(r.alerts))
	for _, e := range r.alerts {
		set[e.alert.Symbol] = struct{}{}
	}
	r.mu.Unlock()

	out := make([]models.Symbol, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// collect вызывать под r.mu.
func (r *Registry) collect(keep func(*models.Alert) bool) []models.Alert {
	picked := make([]*entry, 0, len(r.alerts))
	for _, e := range r.alerts {
		if keep != nil && !keep(&e.alert) {
			continue
		}
		picked = append(picked, e)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].seq < picked[j].seq })

	out := make([]models.Alert, len(picked))
	for i, e := range picked {
		out[i] = e.alert
		if e.alert.LastObservedPrice != nil {
			p := *e.alert.LastObservedPrice
			out[i].LastObservedPrice = &p
		}
	}
	return out
}
