package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/renvrose/moving-tic-tac-toe/internal/domain"
)

// Profile is what a browser session remembers between games: display
// names and cumulative wins.
type Profile struct {
	NameX string
	NameO string
	WinsX int
	WinsO int
}

// Name returns the display name for c, falling back to "Player X"/"Player O".
func (p Profile) Name(c domain.Cell) string {
	var n string
	switch c {
	case domain.X:
		n = p.NameX
	case domain.O:
		n = p.NameO
	}
	if strings.TrimSpace(n) == "" {
		return domain.DefaultLabel(c)
	}
	return n
}

func (p Profile) Wins(c domain.Cell) int {
	switch c {
	case domain.X:
		return p.WinsX
	case domain.O:
		return p.WinsO
	default:
		return 0
	}
}

// Profiles stores profiles in a KV under <prefix>:<id>:<field>.
type Profiles struct {
	kv     KV
	prefix string
}

func NewProfiles(kv KV, prefix string) *Profiles {
	if prefix == "" {
		prefix = "ttt"
	}
	return &Profiles{kv: kv, prefix: prefix}
}

const (
	keyNameX  = "playerXName"
	keyNameO  = "playerOName"
	keyScoreX = "scoreX"
	keyScoreO = "scoreO"
)

func (s *Profiles) key(id, field string) string {
	return s.prefix + ":" + id + ":" + field
}

func scoreField(c domain.Cell) (string, error) {
	switch c {
	case domain.X:
		return keyScoreX, nil
	case domain.O:
		return keyScoreO, nil
	default:
		return "", errors.Errorf("no score for cell %d", c)
	}
}

// Load reads a profile; missing keys are zero values.
func (s *Profiles) Load(ctx context.Context, id string) (Profile, error) {
	var p Profile
	var err error
	if p.NameX, err = s.getString(ctx, s.key(id, keyNameX)); err != nil {
		return Profile{}, err
	}
	if p.NameO, err = s.getString(ctx, s.key(id, keyNameO)); err != nil {
		return Profile{}, err
	}
	if p.WinsX, err = s.getInt(ctx, s.key(id, keyScoreX)); err != nil {
		return Profile{}, err
	}
	if p.WinsO, err = s.getInt(ctx, s.key(id, keyScoreO)); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// SaveNames stores both display names; blank names are stored as the defaults.
func (s *Profiles) SaveNames(ctx context.Context, id, x, o string) error {
	x, o = strings.TrimSpace(x), strings.TrimSpace(o)
	if x == "" {
		x = domain.DefaultLabel(domain.X)
	}
	if o == "" {
		o = domain.DefaultLabel(domain.O)
	}
	if err := s.kv.Set(ctx, s.key(id, keyNameX), x); err != nil {
		return errors.Wrap(err, "save name X")
	}
	if err := s.kv.Set(ctx, s.key(id, keyNameO), o); err != nil {
		return errors.Wrap(err, "save name O")
	}
	return nil
}

// AddWin adjusts c's win counter by delta and returns the new total.
func (s *Profiles) AddWin(ctx context.Context, id string, c domain.Cell, delta int) (int, error) {
	field, err := scoreField(c)
	if err != nil {
		return 0, err
	}
	n, err := s.kv.IncrBy(ctx, s.key(id, field), int64(delta))
	if err != nil {
		return 0, errors.Wrap(err, "add win")
	}
	return int(n), nil
}

// Clear forgets names and scores.
func (s *Profiles) Clear(ctx context.Context, id string) error {
	err := s.kv.Del(ctx,
		s.key(id, keyNameX), s.key(id, keyNameO),
		s.key(id, keyScoreX), s.key(id, keyScoreO),
	)
	return errors.Wrap(err, "clear profile")
}

func (s *Profiles) getString(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrMissing) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "load %s", key)
	}
	return v, nil
}

func (s *Profiles) getInt(ctx context.Context, key string) (int, error) {
	v, err := s.getString(ctx, key)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	return n, nil
}
