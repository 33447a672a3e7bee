// Package memory is an in-process store with the same uniqueness and
// compare-and-swap guarantees as the Postgres store. It backs service tests
// and single-node deployments started with STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/google/uuid"
)

// Op names a store operation for fault injection.
type Op string

const (
	OpCardGet            Op = "card.get"
	OpCardTransfer       Op = "card.transfer"
	OpCardStake          Op = "card.stake"
	OpCardRelease        Op = "card.release"
	OpBattleGet          Op = "battle.get"
	OpBattleUpdateStatus Op = "battle.update_status"
	OpSelectionCreate    Op = "selection.create"
	OpSelectionList      Op = "selection.list"
	OpResultCreate       Op = "result.create"
	OpResultGet          Op = "result.get"
)

// ErrUnavailable is the default injected failure.
var ErrUnavailable = errors.New("memory store: unavailable")

type fault struct {
	remaining int
	err       error
}

type Store struct {
	mu         sync.Mutex
	users      map[uuid.UUID]domain.User
	sessions   map[uuid.UUID]domain.UserSession
	cards      map[uuid.UUID]domain.Card
	battles    map[uuid.UUID]domain.BattleInstance
	selections map[uuid.UUID]map[uuid.UUID]domain.CardSelection
	results    map[uuid.UUID]domain.BattleResult
	faults     map[Op]*fault
	transfers  int
}

func NewStore() *Store {
	return &Store{
		users:      make(map[uuid.UUID]domain.User),
		sessions:   make(map[uuid.UUID]domain.UserSession),
		cards:      make(map[uuid.UUID]domain.Card),
		battles:    make(map[uuid.UUID]domain.BattleInstance),
		selections: make(map[uuid.UUID]map[uuid.UUID]domain.CardSelection),
		results:    make(map[uuid.UUID]domain.BattleResult),
		faults:     make(map[Op]*fault),
	}
}

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:      &userRepository{s},
		Session:   &sessionRepository{s},
		Card:      &cardRepository{s},
		Battle:    &battleRepository{s},
		Selection: &selectionRepository{s},
		Result:    &resultRepository{s},
	}
}

// FailNext makes the next n calls of op return err (ErrUnavailable when nil).
func (s *Store) FailNext(op Op, n int, err error) {
	if err == nil {
		err = ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{remaining: n, err: err}
}

// Transfers counts successful ownership transfers.
func (s *Store) Transfers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfers
}

// injected must be called with s.mu held.
func (s *Store) injected(op Op) error {
	f, ok := s.faults[op]
	if !ok || f.remaining <= 0 {
		return nil
	}
	f.remaining--
	return f.err
}

type userRepository struct{ s *Store }

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, u := range r.s.users {
		if u.DisplayName == user.DisplayName {
			return repository.ErrDuplicate
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepository) GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.DisplayName == displayName {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.users[user.ID] = *user
	return nil
}

type sessionRepository struct{ s *Store }

func (r *sessionRepository) Create(ctx context.Context, session *domain.UserSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[session.ID] = *session
	return nil
}

func (r *sessionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.UserSession
	for _, sess := range r.s.sessions {
		if sess.UserID != userID {
			continue
		}
		if latest == nil || sess.CreatedAt.After(latest.CreatedAt) {
			cp := sess
			latest = &cp
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

type cardRepository struct{ s *Store }

func (r *cardRepository) Create(ctx context.Context, card *domain.Card) error {
	return r.CreateMany(ctx, []*domain.Card{card})
}

func (r *cardRepository) CreateMany(ctx context.Context, cards []*domain.Card) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range cards {
		if _, ok := r.s.cards[c.ID]; ok {
			return repository.ErrDuplicate
		}
	}
	for _, c := range cards {
		r.s.cards[c.ID] = *c
	}
	return nil
}

func (r *cardRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpCardGet); err != nil {
		return nil, err
	}
	c, ok := r.s.cards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *cardRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var cards []*domain.Card
	for _, c := range r.s.cards {
		if c.OwnerID == ownerID {
			cp := c
			cards = append(cards, &cp)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].ObtainedAt.Equal(cards[j].ObtainedAt) {
			return cards[i].ObtainedAt.After(cards[j].ObtainedAt)
		}
		return cards[i].ID.String() < cards[j].ID.String()
	})
	return cards, nil
}

func (r *cardRepository) TransferOwnership(ctx context.Context, cardID, fromOwner, toOwner uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpCardTransfer); err != nil {
		return err
	}
	c, ok := r.s.cards[cardID]
	if !ok || c.OwnerID != fromOwner {
		return repository.ErrOwnerMismatch
	}
	c.OwnerID = toOwner
	r.s.cards[cardID] = c
	r.s.transfers++
	return nil
}

func (r *cardRepository) Stake(ctx context.Context, cardID, owner, battleID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpCardStake); err != nil {
		return err
	}
	c, ok := r.s.cards[cardID]
	switch {
	case !ok:
		return repository.ErrNotFound
	case c.OwnerID != owner:
		return repository.ErrOwnerMismatch
	case c.StakedBattleID != nil && *c.StakedBattleID != battleID:
		return repository.ErrCardStaked
	}
	c.StakedBattleID = &battleID
	r.s.cards[cardID] = c
	return nil
}

func (r *cardRepository) Unstake(ctx context.Context, cardID, battleID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.cards[cardID]; ok && c.StakedBattleID != nil && *c.StakedBattleID == battleID {
		c.StakedBattleID = nil
		r.s.cards[cardID] = c
	}
	return nil
}

func (r *cardRepository) ReleaseStakes(ctx context.Context, battleID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpCardRelease); err != nil {
		return err
	}
	for id, c := range r.s.cards {
		if c.StakedBattleID != nil && *c.StakedBattleID == battleID {
			c.StakedBattleID = nil
			r.s.cards[id] = c
		}
	}
	return nil
}

type battleRepository struct{ s *Store }

func (r *battleRepository) Create(ctx context.Context, battle *domain.BattleInstance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.battles[battle.ID]; ok {
		return repository.ErrDuplicate
	}
	b := *battle
	b.Challenger, b.Opponent = nil, nil
	r.s.battles[battle.ID] = b
	return nil
}

// withUsers must be called with s.mu held.
func (r *battleRepository) withUsers(b domain.BattleInstance) *domain.BattleInstance {
	if u, ok := r.s.users[b.ChallengerID]; ok {
		b.Challenger = &u
	}
	if u, ok := r.s.users[b.OpponentID]; ok {
		b.Opponent = &u
	}
	return &b
}

func (r *battleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BattleInstance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpBattleGet); err != nil {
		return nil, err
	}
	b, ok := r.s.battles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withUsers(b), nil
}

func (r *battleRepository) List(ctx context.Context, filter repository.BattleListFilter) ([]*domain.BattleInstance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var battles []*domain.BattleInstance
	for _, b := range r.s.battles {
		if !b.IsParticipant(filter.PlayerID) {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		battles = append(battles, r.withUsers(b))
	}
	sort.Slice(battles, func(i, j int) bool {
		return battles[i].CreatedAt.After(battles[j].CreatedAt)
	})
	if filter.Offset >= len(battles) {
		return nil, nil
	}
	battles = battles[filter.Offset:]
	if filter.Limit > 0 && len(battles) > filter.Limit {
		battles = battles[:filter.Limit]
	}
	return battles, nil
}

func (r *battleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next domain.BattleStatus, update domain.BattleUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpBattleUpdateStatus); err != nil {
		return err
	}
	b, ok := r.s.battles[id]
	if !ok || b.Status != expected {
		return repository.ErrStaleStatus
	}
	b.Status = next
	b.UpdatedAt = time.Now()
	if update.WinnerID != nil {
		w := *update.WinnerID
		b.WinnerID = &w
	}
	if update.Explanation != nil {
		e := *update.Explanation
		b.Explanation = &e
	}
	if update.AcceptedAt != nil {
		t := *update.AcceptedAt
		b.AcceptedAt = &t
	}
	if update.RevealedAt != nil {
		t := *update.RevealedAt
		b.RevealedAt = &t
	}
	if update.CompletedAt != nil {
		t := *update.CompletedAt
		b.CompletedAt = &t
	}
	r.s.battles[id] = b
	return nil
}

func (r *battleRepository) ListStale(ctx context.Context, status domain.BattleStatus, before time.Time, limit int) ([]*domain.BattleInstance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref := func(b domain.BattleInstance) time.Time {
		switch status {
		case domain.BattleStatusPending:
			return b.CreatedAt
		case domain.BattleStatusCardsRevealed:
			if b.RevealedAt != nil {
				return *b.RevealedAt
			}
			return time.Time{}
		}
		return b.UpdatedAt
	}
	var battles []*domain.BattleInstance
	for _, b := range r.s.battles {
		if b.Status != status {
			continue
		}
		t := ref(b)
		if t.IsZero() || !t.Before(before) {
			continue
		}
		cp := b
		battles = append(battles, &cp)
	}
	sort.Slice(battles, func(i, j int) bool {
		return ref(*battles[i]).Before(ref(*battles[j]))
	})
	if limit > 0 && len(battles) > limit {
		battles = battles[:limit]
	}
	return battles, nil
}

type selectionRepository struct{ s *Store }

func (r *selectionRepository) Create(ctx context.Context, selection *domain.CardSelection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpSelectionCreate); err != nil {
		return err
	}
	byPlayer, ok := r.s.selections[selection.BattleID]
	if !ok {
		byPlayer = make(map[uuid.UUID]domain.CardSelection)
		r.s.selections[selection.BattleID] = byPlayer
	}
	if _, exists := byPlayer[selection.PlayerID]; exists {
		return repository.ErrDuplicate
	}
	byPlayer[selection.PlayerID] = *selection
	return nil
}

func (r *selectionRepository) GetByBattleID(ctx context.Context, battleID uuid.UUID) ([]*domain.CardSelection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpSelectionList); err != nil {
		return nil, err
	}
	var selections []*domain.CardSelection
	for _, sel := range r.s.selections[battleID] {
		cp := sel
		selections = append(selections, &cp)
	}
	sort.Slice(selections, func(i, j int) bool {
		return selections[i].SubmittedAt.Before(selections[j].SubmittedAt)
	})
	return selections, nil
}

func (r *selectionRepository) GetByBattleAndPlayer(ctx context.Context, battleID, playerID uuid.UUID) (*domain.CardSelection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sel, ok := r.s.selections[battleID][playerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sel, nil
}

type resultRepository struct{ s *Store }

func (r *resultRepository) Create(ctx context.Context, result *domain.BattleResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpResultCreate); err != nil {
		return err
	}
	if _, ok := r.s.results[result.BattleID]; ok {
		return repository.ErrDuplicate
	}
	r.s.results[result.BattleID] = *result
	return nil
}

func (r *resultRepository) GetByBattleID(ctx context.Context, battleID uuid.UUID) (*domain.BattleResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected(OpResultGet); err != nil {
		return nil, err
	}
	res, ok := r.s.results[battleID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}
