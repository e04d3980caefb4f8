package models

import "time"

type Step string

const (
	StepIdle                    Step = "IDLE"
	StepAwaitingSymbolSelection Step = "AWAITING_SYMBOL_SELECTION"
	StepAwaitingDirection       Step = "AWAITING_DIRECTION"
	StepAwaitingPrice           Step = "AWAITING_PRICE"
)

// ConversationState прогресс одного чата по шагам "символ -> направление -> цена".
type ConversationState struct {
	Owner            int64
	Step             Step
	PendingSymbol    Symbol
	PendingDirection Direction

	// Token последней подсказки с кнопками. Кнопки со старым токеном игнорируются.
	Token uint64
	// Choices кандидаты при неоднозначном вводе символа.
	Choices []Symbol

	// UpdatedAt последний ввод владельца; по нему брошенные диалоги выметаются.
	UpdatedAt time.Time
}

func IdleState(owner int64) ConversationState {
	return ConversationState{Owner: owner, Step: StepIdle}
}

// SymbolFilter фильтр метаданных биржи при загрузке каталога.
type SymbolFilter struct {
	SettleAsset string // USDT
	Perpetual   bool
}
