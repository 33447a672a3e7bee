package service_test

import (
	"context"
	"math/rand/v2"
	"testing"
	"unicode"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/repository/memory"
	"github.com/dom/cardclash/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectionService_OpenPack(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repositories()
	collection := service.NewCollectionService(repos.Card, 5, rand.NewPCG(1, 2), zap.NewNop())
	playerID := uuid.New()

	cards, err := collection.OpenPack(ctx, playerID)
	require.NoError(t, err)
	require.Len(t, cards, 5)

	assert.Equal(t, domain.CardTypeHumanoid, cards[0].CardType)
	for _, c := range cards {
		assert.NoError(t, c.Validate())
		assert.Equal(t, playerID, c.OwnerID)
		assert.NotEmpty(t, c.Name)
		assert.True(t, unicode.IsUpper([]rune(c.Name)[0]), "name %q should be title cased", c.Name)
	}

	owned, err := collection.ListCards(ctx, playerID)
	require.NoError(t, err)
	assert.Len(t, owned, 5)

	got, err := collection.GetCard(ctx, cards[0].ID)
	require.NoError(t, err)
	assert.Equal(t, cards[0].Name, got.Name)

	_, err = collection.GetCard(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
}

func TestCollectionService_OpenPackIsDeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	playerID := uuid.New()

	roll := func() []*domain.Card {
		repos := memory.NewStore().Repositories()
		collection := service.NewCollectionService(repos.Card, 8, rand.NewPCG(42, 7), zap.NewNop())
		cards, err := collection.OpenPack(ctx, playerID)
		require.NoError(t, err)
		return cards
	}

	first, second := roll(), roll()
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.Equal(t, first[i].Rarity, second[i].Rarity)
		assert.Equal(t, first[i].Archetype, second[i].Archetype)
		assert.Equal(t, first[i].Attributes, second[i].Attributes)
	}
}
