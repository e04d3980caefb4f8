package service

import (
	"fmt"
	"strconv"
	"strings"

	"alert_bot/internal/models"

	"github.com/pkg/errors"
)

type ActionKind int

const (
	ActionReply ActionKind = iota
	ActionReplyWithChoices
	ActionAlertCreated
)

func (k ActionKind) String() string {
	switch k {
	case ActionReply:
		return "reply"
	case ActionReplyWithChoices:
		return "reply_with_choices"
	case ActionAlertCreated:
		return "alert_created"
	default:
		return "unknown"
	}
}

// Choice одна кнопка: подпись и данные, которые вернутся в OnSelect.
type Choice struct {
	Label string
	Data  string
}

// Action что транспорт должен показать пользователю.
type Action struct {
	Kind    ActionKind
	Text    string
	Choices []Choice
	Alert   *models.Alert

	// Err почему ввод отклонён (ErrValidation / ErrStaleSelection); nil если всё ок.
	Err error
}

func reply(text string) Action { return Action{Kind: ActionReply, Text: text} }

func replyWithChoices(text string, choices []Choice) Action {
	return Action{Kind: ActionReplyWithChoices, Text: text, Choices: choices}
}

func (a Action) withErr(err error) Action {
	a.Err = err
	return a
}

const (
	kindSymbol    = "SYM"
	kindDirection = "DIR"
)

// selection разобранные данные кнопки KIND:token:value.
type selection struct {
	kind  string
	token uint64
	value string
}

func encodeSelection(kind string, token uint64, value string) string {
	return fmt.Sprintf("%s:%d:%s", kind, token, value)
}

func parseSelection(data string) (selection, error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 {
		return selection{}, errors.Wrapf(models.ErrValidation, "malformed selection %q", data)
	}
	switch parts[0] {
	case kindSymbol, kindDirection:
	default:
		return selection{}, errors.Wrapf(models.ErrValidation, "unknown selection kind %q", parts[0])
	}
	tok, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || parts[2] == "" {
		return selection{}, errors.Wrapf(models.ErrValidation, "malformed selection %q", data)
	}
	return selection{kind: parts[0], token: tok, value: parts[2]}, nil
}

// IsSelection данные кнопки принадлежат машине диалога.
func IsSelection(data string) bool {
	return strings.HasPrefix(data, kindSymbol+":") || strings.HasPrefix(data, kindDirection+":")
}
