package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	nameAdjectives = []string{"ashen", "gilded", "hollow", "iron", "moonlit", "restless", "scarlet", "silent", "storm", "wild"}
	humanoidNouns  = []string{"duelist", "warden", "oracle", "reaver", "pilgrim", "templar", "hexer", "ranger"}
	weaponNouns    = []string{"halberd", "longbow", "warhammer", "rapier", "grimoire", "glaive", "sling"}
	archetypes     = []domain.Archetype{domain.ArchetypeMight, domain.ArchetypeFinesse, domain.ArchetypeArcane}
)

// attributeRange is the inclusive per-attribute roll range plus the bonus
// added to the archetype's primary attribute.
type attributeRange struct {
	min, max, primaryBonus int
}

var rarityRanges = map[domain.Rarity]attributeRange{
	domain.RarityBronze: {min: 1, max: 5, primaryBonus: 2},
	domain.RaritySilver: {min: 3, max: 7, primaryBonus: 3},
	domain.RarityGold:   {min: 5, max: 9, primaryBonus: 4},
}

type CollectionService struct {
	cardRepo repository.CardRepository
	packSize int
	logger   *zap.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	title cases.Caser
	now   func() time.Time
}

func NewCollectionService(cardRepo repository.CardRepository, packSize int, src rand.Source, logger *zap.Logger) *CollectionService {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())
	}
	return &CollectionService{
		cardRepo: cardRepo,
		packSize: packSize,
		logger:   logger,
		rng:      rand.New(src),
		title:    cases.Title(language.English),
		now:      time.Now,
	}
}

func (s *CollectionService) ListCards(ctx context.Context, ownerID uuid.UUID) ([]*domain.Card, error) {
	cards, err := s.cardRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return cards, nil
}

func (s *CollectionService) GetCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, storeErr(err, domain.ErrCardNotFound)
	}
	return card, nil
}

// OpenPack mints a pack of new cards for ownerID. The first card is always a
// humanoid so every pack can be staked.
func (s *CollectionService) OpenPack(ctx context.Context, ownerID uuid.UUID) ([]*domain.Card, error) {
	cards := s.rollPack(ownerID)
	for _, c := range cards {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	if err := s.cardRepo.CreateMany(ctx, cards); err != nil {
		return nil, storeErr(err, nil)
	}
	s.logger.Info("pack opened", zap.String("owner_id", ownerID.String()), zap.Int("cards", len(cards)))
	return cards, nil
}

func (s *CollectionService) rollPack(ownerID uuid.UUID) []*domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cards := make([]*domain.Card, 0, s.packSize)
	for i := 0; i < s.packSize; i++ {
		cardType := domain.CardTypeHumanoid
		if i > 0 && s.rng.IntN(100) >= 70 {
			cardType = domain.CardTypeWeapon
		}
		cards = append(cards, s.rollCard(ownerID, cardType, now))
	}
	return cards
}

func (s *CollectionService) rollCard(ownerID uuid.UUID, cardType domain.CardType, now time.Time) *domain.Card {
	rarity := s.rollRarity()
	archetype := archetypes[s.rng.IntN(len(archetypes))]
	r := rarityRanges[rarity]

	roll := func() int { return r.min + s.rng.IntN(r.max-r.min+1) }
	attrs := domain.Attributes{Str: roll(), Dex: roll(), Int: roll()}
	switch archetype {
	case domain.ArchetypeMight:
		attrs.Str += r.primaryBonus
	case domain.ArchetypeFinesse:
		attrs.Dex += r.primaryBonus
	case domain.ArchetypeArcane:
		attrs.Int += r.primaryBonus
	}

	nouns := humanoidNouns
	if cardType == domain.CardTypeWeapon {
		nouns = weaponNouns
	}
	name := nameAdjectives[s.rng.IntN(len(nameAdjectives))] + " " + nouns[s.rng.IntN(len(nouns))]

	return &domain.Card{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		CardType:   cardType,
		Name:       s.title.String(name),
		Rarity:     rarity,
		Archetype:  archetype,
		Attributes: attrs,
		ObtainedAt: now,
	}
}

// rollRarity draws bronze 70%, silver 25%, gold 5%.
func (s *CollectionService) rollRarity() domain.Rarity {
	switch n := s.rng.IntN(100); {
	case n < 5:
		return domain.RarityGold
	case n < 30:
		return domain.RaritySilver
	}
	return domain.RarityBronze
}
