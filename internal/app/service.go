package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renvrose/moving-tic-tac-toe/internal/domain"
	"github.com/renvrose/moving-tic-tac-toe/internal/store"
)

// Errors exposed by the service layer.
var (
	ErrNotFound    = errors.New("game not found")
	ErrInvalidSize = errors.New("invalid board size")
)

// GameState is the in-memory state tracked per game.
type GameState struct {
	ID      string
	Owner   string
	Game    domain.Game
	Profile store.Profile
	Created time.Time
	Updated time.Time

	// scored is set while the current win is credited to the profile.
	scored bool
}

// Label maps a player to the owner's display name.
func (gs GameState) Label(c domain.Cell) string { return gs.Profile.Name(c) }

// Status is the status line with display names.
func (gs GameState) Status() string { return gs.Game.Status(gs.Label) }

func (gs GameState) clone() GameState {
	cp := gs
	cp.Game = gs.Game.Clone()
	return cp
}

// ProfileStore persists names and scores per owner.
type ProfileStore interface {
	Load(ctx context.Context, id string) (store.Profile, error)
	SaveNames(ctx context.Context, id, x, o string) error
	AddWin(ctx context.Context, id string, c domain.Cell, delta int) (int, error)
	Clear(ctx context.Context, id string) error
}

// Renderer turns a state into a broadcast payload.
type Renderer func(GameState) []byte

type subscriber struct {
	mu     sync.Mutex
	closed bool
	ch     chan []byte
	render Renderer
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// offer does a non-blocking send. It reports false only when the buffer is
// full; a closed subscriber is skipped.
func (s *subscriber) offer(b []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- b:
		return true
	default:
		return false
	}
}

// entry serializes all mutations of one game.
type entry struct {
	mu sync.Mutex
	gs GameState
}

// Service manages games and subscribers.
type Service struct {
	mu     sync.Mutex
	games  map[string]*entry
	subs   map[string]map[*subscriber]struct{}
	render Renderer

	profiles ProfileStore
	log      *zap.Logger
	minSize  int
	maxSize  int
	buffer   int
}

// Option configures a Service.
type Option func(*Service)

func WithRenderer(r Renderer) Option { return func(s *Service) { s.setRenderer(r) } }

func WithStore(p ProfileStore) Option { return func(s *Service) { s.profiles = p } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSizeLimits bounds the board sizes CreateGame and Resize accept.
func WithSizeLimits(lo, hi int) Option {
	return func(s *Service) { s.minSize, s.maxSize = lo, hi }
}

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// NewService creates a service with an in-memory profile store and a no-op renderer.
func NewService(opts ...Option) *Service {
	s := &Service{
		games:    make(map[string]*entry),
		subs:     make(map[string]map[*subscriber]struct{}),
		render:   func(GameState) []byte { return nil },
		profiles: store.NewProfiles(store.NewMemoryKV(), "ttt"),
		log:      zap.NewNop(),
		minSize:  1,
		maxSize:  9,
		buffer:   1,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewServiceWithRenderer allows injecting a renderer for broadcast payloads.
func NewServiceWithRenderer(renderer Renderer) *Service {
	return NewService(WithRenderer(renderer))
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setRenderer(renderer)
}

func (s *Service) setRenderer(renderer Renderer) {
	if renderer == nil {
		renderer = func(GameState) []byte { return nil }
	}
	s.render = renderer
}

func (s *Service) checkSize(n int) error {
	if n < s.minSize || n > s.maxSize {
		return ErrInvalidSize
	}
	return nil
}

// SizeLimits returns the accepted board size range.
func (s *Service) SizeLimits() (int, int) { return s.minSize, s.maxSize }

// CreateGame creates and registers a new game for owner.
func (s *Service) CreateGame(ctx context.Context, owner string, size int) (*GameState, error) {
	if err := s.checkSize(size); err != nil {
		return nil, err
	}
	g, err := domain.New(size)
	if err != nil {
		return nil, ErrInvalidSize
	}
	now := time.Now()
	gs := GameState{ID: uuid.NewString(), Owner: owner, Game: g, Created: now, Updated: now}

	s.mu.Lock()
	s.games[gs.ID] = &entry{gs: gs}
	s.mu.Unlock()

	s.log.Info("game created", zap.String("game_id", gs.ID), zap.Int("size", size))
	cp := gs.clone()
	cp.Profile = s.loadProfile(ctx, owner)
	return &cp, nil
}

// Get returns a copy of the game state if present.
func (s *Service) Get(ctx context.Context, id string) (*GameState, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	cp := e.gs.clone()
	e.mu.Unlock()
	cp.Profile = s.loadProfile(ctx, cp.Owner)
	return &cp, true
}

func (s *Service) lookup(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.games[id]
	return e, ok
}

// Click feeds a cell index to the game. A winning move adds to the owner's score.
func (s *Service) Click(ctx context.Context, id string, cell int) (*GameState, error) {
	return s.mutate(ctx, id, func(gs *GameState) error {
		if err := gs.Game.Click(cell); err != nil {
			return err
		}
		if gs.Game.State() == domain.Won {
			gs.scored = s.addWin(ctx, gs, gs.Game.Winner, 1)
		}
		return nil
	})
}

// Undo reverts the last move; undoing a credited win takes the point back.
func (s *Service) Undo(ctx context.Context, id string) (*GameState, error) {
	return s.mutate(ctx, id, func(gs *GameState) error {
		winner := domain.Empty
		if gs.Game.State() == domain.Won && gs.scored {
			winner = gs.Game.Winner
		}
		if gs.Game.Undo() && winner != domain.Empty {
			s.addWin(ctx, gs, winner, -1)
		}
		gs.scored = false
		return nil
	})
}

// Reset starts the same board size over.
func (s *Service) Reset(ctx context.Context, id string) (*GameState, error) {
	return s.mutate(ctx, id, func(gs *GameState) error {
		gs.Game.Reset()
		return nil
	})
}

// Resize replaces the board with a fresh one of the given size.
func (s *Service) Resize(ctx context.Context, id string, size int) (*GameState, error) {
	if err := s.checkSize(size); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(gs *GameState) error {
		if err := gs.Game.Resize(size); err != nil {
			return ErrInvalidSize
		}
		return nil
	})
}

// SetNames stores the display names on the owner's profile.
func (s *Service) SetNames(ctx context.Context, id, x, o string) (*GameState, error) {
	return s.mutate(ctx, id, func(gs *GameState) error {
		return s.profiles.SaveNames(ctx, gs.Owner, x, o)
	})
}

// NewSession forgets the owner's names and scores and clears the board.
func (s *Service) NewSession(ctx context.Context, id string) (*GameState, error) {
	return s.mutate(ctx, id, func(gs *GameState) error {
		if err := s.profiles.Clear(ctx, gs.Owner); err != nil {
			return err
		}
		gs.Game.Reset()
		return nil
	})
}

func (s *Service) addWin(ctx context.Context, gs *GameState, c domain.Cell, delta int) bool {
	if _, err := s.profiles.AddWin(ctx, gs.Owner, c, delta); err != nil {
		s.log.Warn("score update failed",
			zap.String("game_id", gs.ID),
			zap.Stringer("player", c),
			zap.Error(err))
		return false
	}
	return true
}

func (s *Service) loadProfile(ctx context.Context, owner string) store.Profile {
	p, err := s.profiles.Load(ctx, owner)
	if err != nil {
		s.log.Warn("profile load failed", zap.String("owner", owner), zap.Error(err))
		return store.Profile{}
	}
	return p
}

// mutate applies fn under the game's lock and broadcasts the result. A failed
// fn leaves the game untouched and nothing is broadcast.
func (s *Service) mutate(ctx context.Context, id string, fn func(*GameState) error) (*GameState, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.gs.clone()
	if err := fn(&work); err != nil {
		return nil, err
	}
	work.Updated = time.Now()
	e.gs = work

	cp := work.clone()
	cp.Profile = s.loadProfile(ctx, cp.Owner)
	s.broadcast(id, cp)
	s.log.Debug("game updated",
		zap.String("game_id", id),
		zap.Stringer("state", cp.Game.State()),
		zap.Int("moves", cp.Game.Moves))
	return &cp, nil
}

// broadcast fans out to subscribers; slow ones are closed and dropped.
func (s *Service) broadcast(id string, gs GameState) {
	s.mu.Lock()
	subs := s.copySubsLocked(id)
	def := s.render
	s.mu.Unlock()

	var toDrop []*subscriber
	for sub := range subs {
		render := sub.render
		if render == nil {
			render = def
		}
		if !sub.offer(render(gs)) {
			sub.close()
			toDrop = append(toDrop, sub)
		}
	}
	if len(toDrop) > 0 {
		s.mu.Lock()
		for _, sub := range toDrop {
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
		}
		s.mu.Unlock()
		s.log.Info("dropped slow subscribers", zap.String("game_id", id), zap.Int("count", len(toDrop)))
	}
}

// Subscribe registers a subscriber using the service renderer.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func(), error) {
	return s.SubscribeWith(ctx, id, nil)
}

// SubscribeWith registers a subscriber with its own renderer. The channel is
// closed on unsubscribe, on ctx cancellation, or when the subscriber falls behind.
func (s *Service) SubscribeWith(ctx context.Context, id string, render Renderer) (<-chan []byte, func(), error) {
	s.mu.Lock()
	if _, ok := s.games[id]; !ok {
		s.mu.Unlock()
		return nil, nil, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, s.buffer), render: render}
	set[sub] = struct{}{}
	s.mu.Unlock()

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
			s.mu.Unlock()
			sub.close()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub, nil
}

func (s *Service) copySubsLocked(id string) map[*subscriber]struct{} {
	out := make(map[*subscriber]struct{})
	if set, ok := s.subs[id]; ok {
		for k := range set {
			out[k] = struct{}{}
		}
	}
	return out
}
