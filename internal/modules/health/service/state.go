package service

import (
	"sync/atomic"
	"time"
)

// State флаги живости процесса; пишут модули, читают HTTP-ручки.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected  atomic.Bool
	lastTickUnix atomic.Int64 // unix nanos
	now          func() time.Time
}

func NewState() *State {
	return &State{startedAt: time.Now(), now: time.Now}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.UnixNano()) }

func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(0, u)
}

// TickStale true, если цикл не отмечался дольше maxAge. До первого тика не stale.
func (s *State) TickStale(maxAge time.Duration) bool {
	last := s.LastTick()
	if last.IsZero() || maxAge <= 0 {
		return false
	}
	return s.now().Sub(last) > maxAge
}

func (s *State) Uptime() time.Duration { return s.now().Sub(s.startedAt) }
