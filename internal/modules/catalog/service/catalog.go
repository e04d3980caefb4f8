package service

import (
	"strings"
	"sync/atomic"

	"alert_bot/internal/models"
)

type snapshot struct {
	ordered []models.Symbol
	set     map[models.Symbol]struct{}
}

// Catalog неизменяемый снимок допустимых символов; замена снимка атомарная,
// читатели никогда не видят полузагруженный список.
type Catalog struct {
	snap atomic.Pointer[snapshot]
}

func NewCatalog(symbols ...models.Symbol) *Catalog {
	c := &Catalog{}
	c.Swap(symbols)
	return c
}

// Swap нормализует, выкидывает дубли и пустые, порядок первого появления сохраняется.
func (c *Catalog) Swap(symbols []models.Symbol) int {
	s := &snapshot{
		ordered: make([]models.Symbol, 0, len(symbols)),
		set:     make(map[models.Symbol]struct{}, len(symbols)),
	}
	for _, raw := range symbols {
		sym := models.NormalizeSymbol(string(raw))
		if sym == "" {
			continue
		}
		if _, dup := s.set[sym]; dup {
			continue
		}
		s.set[sym] = struct{}{}
		s.ordered = append(s.ordered, sym)
	}
	c.snap.Store(s)
	return len(s.ordered)
}

func (c *Catalog) IsValid(sym models.Symbol) bool {
	_, ok := c.snap.Load().set[models.NormalizeSymbol(string(sym))]
	return ok
}

func (c *Catalog) Len() int { return len(c.snap.Load().ordered) }

func (c *Catalog) Symbols() []models.Symbol {
	s := c.snap.Load()
	out := make([]models.Symbol, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Find ищет кандидатов по вводу пользователя: точное совпадение, затем префикс,
// затем подстрока. Внутри группы порядок каталога. limit<=0 без ограничения.
func (c *Catalog) Find(query string, limit int) []models.Symbol {
	q := string(models.NormalizeSymbol(query))
	q = strings.NewReplacer("-", "", "_", "", "/", "", " ", "").Replace(q)
	if q == "" {
		return nil
	}

	s := c.snap.Load()
	if _, ok := s.set[models.Symbol(q)]; ok {
		return []models.Symbol{models.Symbol(q)}
	}

	var prefix, contains []models.Symbol
	for _, sym := range s.ordered {
		str := string(sym)
		switch {
		case strings.HasPrefix(str, q):
			prefix = append(prefix, sym)
		case strings.Contains(str, q):
			contains = append(contains, sym)
		}
	}

	out := append(prefix, contains...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
