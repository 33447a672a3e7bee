package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/cardclash/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	displayName string
	password    string
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		displayName: fmt.Sprintf("testuser_%s", uuid.New().String()[:8]),
		password:    "testpassword123",
	}
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		DisplayName:  b.displayName,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// BuildAndAuthenticate creates a user via API and returns the user and access token
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	reqBody := map[string]string{
		"displayName": b.displayName,
		"password":    b.password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:          userID,
		DisplayName: authResp.User.DisplayName,
	}

	return user, authResp.AccessToken
}

// CardBuilder creates test cards with a builder pattern
type CardBuilder struct {
	owner      *domain.User
	name       string
	cardType   domain.CardType
	rarity     domain.Rarity
	archetype  domain.Archetype
	attributes domain.Attributes
}

// NewCardBuilder creates a new CardBuilder with default values
func NewCardBuilder() *CardBuilder {
	return &CardBuilder{
		name:       fmt.Sprintf("Test Card %s", uuid.New().String()[:6]),
		cardType:   domain.CardTypeHumanoid,
		rarity:     domain.RarityBronze,
		archetype:  domain.ArchetypeMight,
		attributes: domain.Attributes{Str: 5, Dex: 5, Int: 5},
	}
}

// WithOwner sets the owning player
func (b *CardBuilder) WithOwner(user *domain.User) *CardBuilder {
	b.owner = user
	return b
}

// WithName sets the card name
func (b *CardBuilder) WithName(name string) *CardBuilder {
	b.name = name
	return b
}

// WithType sets the card type
func (b *CardBuilder) WithType(cardType domain.CardType) *CardBuilder {
	b.cardType = cardType
	return b
}

// WithRarity sets the rarity
func (b *CardBuilder) WithRarity(rarity domain.Rarity) *CardBuilder {
	b.rarity = rarity
	return b
}

// WithArchetype sets the archetype
func (b *CardBuilder) WithArchetype(archetype domain.Archetype) *CardBuilder {
	b.archetype = archetype
	return b
}

// WithAttributes sets str, dex and int
func (b *CardBuilder) WithAttributes(str, dex, intel int) *CardBuilder {
	b.attributes = domain.Attributes{Str: str, Dex: dex, Int: intel}
	return b
}

// Build creates the card in the database, creating an owner if none was set
func (b *CardBuilder) Build(t *testing.T, db *gorm.DB) *domain.Card {
	t.Helper()

	if b.owner == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.owner = user
	}

	card := &domain.Card{
		ID:         uuid.New(),
		OwnerID:    b.owner.ID,
		CardType:   b.cardType,
		Name:       b.name,
		Rarity:     b.rarity,
		Archetype:  b.archetype,
		Attributes: b.attributes,
		ObtainedAt: time.Now(),
	}

	if err := db.Create(card).Error; err != nil {
		t.Fatalf("failed to create card: %v", err)
	}

	return card
}

// BattleBuilder creates test battles with a builder pattern
type BattleBuilder struct {
	challenger *domain.User
	opponent   *domain.User
	status     domain.BattleStatus
	createdAt  time.Time
	revealedAt *time.Time
}

// NewBattleBuilder creates a new BattleBuilder with default values
func NewBattleBuilder() *BattleBuilder {
	return &BattleBuilder{
		status:    domain.BattleStatusPending,
		createdAt: time.Now(),
	}
}

// WithStatus sets the battle status
func (b *BattleBuilder) WithStatus(status domain.BattleStatus) *BattleBuilder {
	b.status = status
	return b
}

// WithChallenger sets the challenging player
func (b *BattleBuilder) WithChallenger(user *domain.User) *BattleBuilder {
	b.challenger = user
	return b
}

// WithOpponent sets the challenged player
func (b *BattleBuilder) WithOpponent(user *domain.User) *BattleBuilder {
	b.opponent = user
	return b
}

// WithCreatedAt backdates the battle
func (b *BattleBuilder) WithCreatedAt(at time.Time) *BattleBuilder {
	b.createdAt = at
	return b
}

// WithRevealedAt sets when both cards were revealed
func (b *BattleBuilder) WithRevealedAt(at time.Time) *BattleBuilder {
	b.revealedAt = &at
	return b
}

// Build creates the battle in the database, creating players if none were set
func (b *BattleBuilder) Build(t *testing.T, db *gorm.DB) *domain.BattleInstance {
	t.Helper()

	if b.challenger == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.challenger = user
	}
	if b.opponent == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.opponent = user
	}

	battle := &domain.BattleInstance{
		ID:           uuid.New(),
		ChallengerID: b.challenger.ID,
		OpponentID:   b.opponent.ID,
		Status:       b.status,
		CreatedAt:    b.createdAt,
		UpdatedAt:    b.createdAt,
		RevealedAt:   b.revealedAt,
	}
	if b.status != domain.BattleStatusPending {
		accepted := b.createdAt
		battle.AcceptedAt = &accepted
	}
	if b.status == domain.BattleStatusCardsRevealed && battle.RevealedAt == nil {
		revealed := b.createdAt
		battle.RevealedAt = &revealed
	}

	if err := db.Create(battle).Error; err != nil {
		t.Fatalf("failed to create battle: %v", err)
	}

	return battle
}

// StakeCard records a selection for player in battle
func StakeCard(t *testing.T, db *gorm.DB, battle *domain.BattleInstance, card *domain.Card) *domain.CardSelection {
	t.Helper()

	selection := &domain.CardSelection{
		ID:          uuid.New(),
		BattleID:    battle.ID,
		PlayerID:    card.OwnerID,
		CardID:      card.ID,
		SubmittedAt: time.Now(),
	}
	if err := db.Create(selection).Error; err != nil {
		t.Fatalf("failed to create selection: %v", err)
	}
	return selection
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}
