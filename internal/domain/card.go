package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CardType string

const (
	CardTypeHumanoid CardType = "humanoid"
	CardTypeWeapon   CardType = "weapon"
)

func (t CardType) IsValid() bool {
	return t == CardTypeHumanoid || t == CardTypeWeapon
}

// BattleEligible reports whether cards of this type can be staked in a battle.
func (t CardType) BattleEligible() bool {
	return t == CardTypeHumanoid
}

type Rarity string

const (
	RarityBronze Rarity = "bronze"
	RaritySilver Rarity = "silver"
	RarityGold   Rarity = "gold"
)

func (r Rarity) IsValid() bool {
	switch r {
	case RarityBronze, RaritySilver, RarityGold:
		return true
	}
	return false
}

// Archetype is a card's corner of the advantage triangle:
// might beats finesse, finesse beats arcane, arcane beats might.
type Archetype string

const (
	ArchetypeMight   Archetype = "might"
	ArchetypeFinesse Archetype = "finesse"
	ArchetypeArcane  Archetype = "arcane"
)

var archetypeBeats = map[Archetype]Archetype{
	ArchetypeMight:   ArchetypeFinesse,
	ArchetypeFinesse: ArchetypeArcane,
	ArchetypeArcane:  ArchetypeMight,
}

func (a Archetype) IsValid() bool {
	_, ok := archetypeBeats[a]
	return ok
}

// Beats reports whether a counters other. Same archetypes never beat each other.
func (a Archetype) Beats(other Archetype) bool {
	return archetypeBeats[a] == other
}

// Primary returns the attribute the archetype leans on.
func (a Archetype) Primary(attrs Attributes) int {
	switch a {
	case ArchetypeFinesse:
		return attrs.Dex
	case ArchetypeArcane:
		return attrs.Int
	default:
		return attrs.Str
	}
}

type Attributes struct {
	Str int `json:"str" gorm:"not null"`
	Dex int `json:"dex" gorm:"not null"`
	Int int `json:"int" gorm:"not null"`
}

func (a Attributes) Sum() int {
	return a.Str + a.Dex + a.Int
}

// Card is immutable after creation except for OwnerID, which moves once when the
// card is lost in a battle, and StakedBattleID, which is set while the card is
// riding on an unfinished battle.
type Card struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OwnerID    uuid.UUID  `json:"ownerId" gorm:"type:uuid;not null;index"`
	CardType   CardType   `json:"cardType" gorm:"type:varchar(20);not null"`
	Name       string     `json:"name" gorm:"not null"`
	Rarity     Rarity     `json:"rarity" gorm:"type:varchar(10);not null"`
	Archetype  Archetype  `json:"archetype" gorm:"type:varchar(10);not null;default:'might'"`
	Attributes Attributes `json:"attributes" gorm:"embedded;embeddedPrefix:attr_"`
	ObtainedAt time.Time  `json:"obtainedAt" gorm:"not null"`

	StakedBattleID *uuid.UUID `json:"stakedBattleId,omitempty" gorm:"type:uuid;index"`
}

func (c *Card) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCard)
	}
	if !c.CardType.IsValid() {
		return fmt.Errorf("%w: unknown card type %q", ErrInvalidCard, c.CardType)
	}
	if !c.Rarity.IsValid() {
		return fmt.Errorf("%w: unknown rarity %q", ErrInvalidCard, c.Rarity)
	}
	if !c.Archetype.IsValid() {
		return fmt.Errorf("%w: unknown archetype %q", ErrInvalidCard, c.Archetype)
	}
	if c.Attributes.Str < 0 || c.Attributes.Dex < 0 || c.Attributes.Int < 0 {
		return fmt.Errorf("%w: attributes must be non-negative", ErrInvalidCard)
	}
	return nil
}
