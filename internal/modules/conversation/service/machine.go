package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"alert_bot/internal/models"
	"alert_bot/pkg/logger"

	"github.com/pkg/errors"
)

type Catalog interface {
	IsValid(sym models.Symbol) bool
	Find(query string, limit int) []models.Symbol
}

type Registry interface {
	Add(a models.Alert) models.AlertID
}

// Machine диалог "символ -> направление -> цена" для каждого чата отдельно.
// Переходы одного владельца сериализованы общим мьютексом.
type Machine struct {
	catalog    Catalog
	registry   Registry
	maxChoices int
	now        func() time.Time

	mu     sync.Mutex
	states map[int64]*models.ConversationState
	token  uint64
}

func NewMachine(catalog Catalog, registry Registry, maxChoices int) *Machine {
	if maxChoices < 1 {
		maxChoices = 1
	}
	return &Machine{
		catalog:    catalog,
		registry:   registry,
		maxChoices: maxChoices,
		now:        time.Now,
		states:     make(map[int64]*models.ConversationState),
	}
}

// State копия текущего состояния; для IDLE-владельцев возвращается пустое IDLE.
func (m *Machine) State(owner int64) models.ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[owner]
	if !ok {
		return models.IdleState(owner)
	}
	cp := *st
	cp.Choices = append([]models.Symbol(nil), st.Choices...)
	return cp
}

func (m *Machine) Cancel(owner int64) Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[owner]; !ok {
		return reply("Nothing to cancel. Send a ticker, e.g. BTC, to create an alert.")
	}
	delete(m.states, owner)
	return reply("Cancelled. Send a ticker, e.g. BTC, to start over.")
}

func isCancel(s string) bool {
	switch strings.ToUpper(s) {
	case "CANCEL", "/CANCEL":
		return true
	}
	return false
}

// OnText обрабатывает свободный текст в зависимости от шага.
func (m *Machine) OnText(_ context.Context, owner int64, raw string) Action {
	text := strings.TrimSpace(raw)
	if isCancel(text) {
		return m.Cancel(owner)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.stateLocked(owner)
	defer m.settleLocked(st)
	if text == "" {
		return m.promptLocked(st).withErr(errors.Wrap(models.ErrValidation, "empty input"))
	}

	switch st.Step {
	case models.StepAwaitingDirection:
		dir, ok := models.ParseDirection(text)
		if !ok {
			a := m.promptLocked(st)
			a.Text = fmt.Sprintf("Unknown direction %q. %s", text, a.Text)
			return a.withErr(errors.Wrapf(models.ErrValidation, "bad direction %q", text))
		}
		return m.setDirectionLocked(st, dir)

	case models.StepAwaitingPrice:
		return m.setPriceLocked(st, text)

	default:
		// IDLE и AWAITING_SYMBOL_SELECTION: текст это новый поиск символа
		return m.querySymbolLocked(st, text)
	}
}

// OnSelect нажатие кнопки. Кнопка со старым токеном или не того шага
// отклоняется, состояние не меняется.
func (m *Machine) OnSelect(_ context.Context, owner int64, data string) Action {
	sel, err := parseSelection(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.stateLocked(owner)
	defer m.settleLocked(st)
	if err != nil {
		return m.promptLocked(st).withErr(err)
	}

	stale := func() Action {
		a := m.promptLocked(st)
		a.Text = "That button is outdated. " + a.Text
		return a.withErr(errors.Wrapf(models.ErrStaleSelection, "token %d, current %d, step %s", sel.token, st.Token, st.Step))
	}
	if sel.token != st.Token {
		return stale()
	}

	switch sel.kind {
	case kindSymbol:
		if st.Step != models.StepAwaitingSymbolSelection {
			return stale()
		}
		sym := models.NormalizeSymbol(sel.value)
		if !containsSymbol(st.Choices, sym) || !m.catalog.IsValid(sym) {
			return stale()
		}
		return m.promptDirectionLocked(st, sym)

	case kindDirection:
		if st.Step != models.StepAwaitingDirection {
			return stale()
		}
		dir, ok := models.ParseDirection(sel.value)
		if !ok {
			return stale()
		}
		return m.setDirectionLocked(st, dir)
	}
	return stale()
}

func (m *Machine) querySymbolLocked(st *models.ConversationState, text string) Action {
	matches := m.catalog.Find(text, m.maxChoices)
	switch len(matches) {
	case 0:
		return reply(fmt.Sprintf("No symbol matches %q. Send another ticker, e.g. BTC or BTCUSDT.", strings.ToUpper(text))).
			withErr(errors.Wrapf(models.ErrValidation, "no symbol matches %q", text))
	case 1:
		return m.promptDirectionLocked(st, matches[0])
	}

	st.Step = models.StepAwaitingSymbolSelection
	st.PendingSymbol = ""
	st.PendingDirection = ""
	st.Choices = matches
	st.Token = m.nextTokenLocked()
	return m.promptLocked(st)
}

func (m *Machine) promptDirectionLocked(st *models.ConversationState, sym models.Symbol) Action {
	st.Step = models.StepAwaitingDirection
	st.PendingSymbol = sym
	st.PendingDirection = ""
	st.Choices = nil
	st.Token = m.nextTokenLocked()
	return m.promptLocked(st)
}

func (m *Machine) setDirectionLocked(st *models.ConversationState, dir models.Direction) Action {
	st.Step = models.StepAwaitingPrice
	st.PendingDirection = dir
	st.Token = m.nextTokenLocked()
	return m.promptLocked(st)
}

// setPriceLocked на плохом числе состояние сохраняется целиком.
func (m *Machine) setPriceLocked(st *models.ConversationState, text string) Action {
	threshold, err := models.ParseThreshold(text)
	if err != nil {
		return reply(fmt.Sprintf("Invalid number %q. Send a positive price for %s, e.g. 50000 or 0.0123.", text, st.PendingSymbol)).
			withErr(err)
	}

	alert := models.NewAlert(st.Owner, st.PendingSymbol, st.PendingDirection, threshold, m.now())
	alert.ID = m.registry.Add(alert)
	delete(m.states, st.Owner)

	text = fmt.Sprintf("✅ Alert set: %s %s %s. I will notify you once.",
		alert.Symbol, alert.Direction.Label(), alert.Threshold.String())
	return Action{Kind: ActionAlertCreated, Text: text, Alert: &alert}
}

// promptLocked подсказка для текущего шага; кнопки с текущим токеном.
func (m *Machine) promptLocked(st *models.ConversationState) Action {
	switch st.Step {
	case models.StepAwaitingSymbolSelection:
		choices := make([]Choice, 0, len(st.Choices))
		for _, sym := range st.Choices {
			choices = append(choices, Choice{Label: string(sym), Data: encodeSelection(kindSymbol, st.Token, string(sym))})
		}
		return replyWithChoices("Several symbols match. Pick one:", choices)

	case models.StepAwaitingDirection:
		return replyWithChoices(
			fmt.Sprintf("%s: notify when the price goes above or below the target?", st.PendingSymbol),
			[]Choice{
				{Label: "⬆️ Above", Data: encodeSelection(kindDirection, st.Token, string(models.DirectionAtOrAbove))},
				{Label: "⬇️ Below", Data: encodeSelection(kindDirection, st.Token, string(models.DirectionAtOrBelow))},
			},
		)

	case models.StepAwaitingPrice:
		return reply(fmt.Sprintf("%s %s: send the target price.", st.PendingSymbol, st.PendingDirection.Label()))

	default:
		return reply("Send a ticker, e.g. BTC or BTCUSDT, to create a price alert.")
	}
}

// stateLocked состояние владельца; IDLE заводится лениво.
func (m *Machine) stateLocked(owner int64) *models.ConversationState {
	st, ok := m.states[owner]
	if !ok {
		s := models.IdleState(owner)
		st = &s
		m.states[owner] = st
	}
	return st
}

// settleLocked IDLE не храним, карта растёт только на незаконченных диалогах.
func (m *Machine) settleLocked(st *models.ConversationState) {
	if st.Step == models.StepIdle {
		delete(m.states, st.Owner)
		return
	}
	st.UpdatedAt = m.now()
}

// Sweep удаляет диалоги, к которым не возвращались дольше maxIdle.
// Кнопки выметенного диалога потом отклоняются как устаревшие.
func (m *Machine) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for owner, st := range m.states {
		if st.UpdatedAt.Before(cutoff) {
			delete(m.states, owner)
			n++
		}
	}
	return n
}

// Pending сколько незаконченных диалогов в памяти.
func (m *Machine) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// RunSweeper чистит брошенные диалоги раз в every до отмены ctx.
func (m *Machine) RunSweeper(ctx context.Context, every, maxIdle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(maxIdle); n > 0 {
				logger.Debug("[CONVERSATION] swept %d abandoned dialogs", n)
			}
		}
	}
}

func (m *Machine) nextTokenLocked() uint64 {
	m.token++
	return m.token
}

func containsSymbol(list []models.Symbol, sym models.Symbol) bool {
	for _, s := range list {
		if s == sym {
			return true
		}
	}
	return false
}
