package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Coffee BeverageType = iota
	MilkTea
	LemonTea
	Bottled

	beverageTypeCount = iota
)

const (
	// MinQuantity and MaxQuantity bound the units accepted for a single record.
	MinQuantity = 1
	MaxQuantity = 10
)

type (
	// BeverageType identifies one of the closed set of drinks that can be logged.
	BeverageType int

	// BeverageInfo is the static metadata attached to a beverage type.
	BeverageInfo struct {
		Type        BeverageType
		ID          string // stable identifier used in storage and on the wire
		DisplayName string
		Emoji       string
		Color       string // theme color, hex
	}

	// Record is a single logged consumption event.
	Record struct {
		ID        string
		Timestamp time.Time
		Type      BeverageType
		Quantity  int
	}
)

var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrUnknownBeverage = errors.New("unknown beverage type")
	ErrZeroTimestamp   = errors.New("timestamp cannot be zero")
	ErrEmptyID         = errors.New("empty record id")
	ErrRecordNotFound  = errors.New("record not found")
)

// beverages is indexed by BeverageType; order is the display order.
var beverages = [beverageTypeCount]BeverageInfo{
	Coffee:   {Type: Coffee, ID: "coffee", DisplayName: "Coffee", Emoji: "☕️", Color: "#8B5A2B"},
	MilkTea:  {Type: MilkTea, ID: "tea", DisplayName: "Milk tea", Emoji: "🧋", Color: "#A259C4"},
	LemonTea: {Type: LemonTea, ID: "lemon_tea", DisplayName: "Lemon tea", Emoji: "🍋", Color: "#E8C547"},
	Bottled:  {Type: Bottled, ID: "bottled", DisplayName: "Bottled drink", Emoji: "🥤", Color: "#3D8FD1"},
}

// legacy identifiers written by older clients
var beverageAliases = map[string]BeverageType{
	"milk_tea": MilkTea,
	"milktea":  MilkTea,
	"lemontea": LemonTea,
}

// BeverageTypes returns every beverage type in display order.
func BeverageTypes() []BeverageType {
	out := make([]BeverageType, beverageTypeCount)
	for i := range out {
		out[i] = BeverageType(i)
	}
	return out
}

// Beverages returns the metadata table in display order.
func Beverages() []BeverageInfo {
	out := make([]BeverageInfo, beverageTypeCount)
	copy(out, beverages[:])
	return out
}

// Valid reports whether t is one of the known beverage types.
func (t BeverageType) Valid() bool {
	return t >= 0 && int(t) < beverageTypeCount
}

// Info returns the metadata for t. Invalid values report coffee metadata.
func (t BeverageType) Info() BeverageInfo {
	if !t.Valid() {
		return beverages[Coffee]
	}
	return beverages[t]
}

func (t BeverageType) String() string {
	return t.Info().ID
}

func (t BeverageType) DisplayName() string { return t.Info().DisplayName }
func (t BeverageType) Emoji() string       { return t.Info().Emoji }
func (t BeverageType) Color() string       { return t.Info().Color }

// MarshalText implements encoding.TextMarshaler so the type travels as its ID.
func (t BeverageType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBeverage, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText is strict: unknown identifiers are rejected.
func (t *BeverageType) UnmarshalText(b []byte) error {
	v, ok := LookupBeverageType(string(b))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBeverage, string(b))
	}
	*t = v
	return nil
}

// LookupBeverageType resolves an identifier (case-insensitive) to a type.
func LookupBeverageType(id string) (BeverageType, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, b := range beverages {
		if b.ID == id {
			return b.Type, true
		}
	}
	if t, ok := beverageAliases[id]; ok {
		return t, true
	}
	return Coffee, false
}

// ParseBeverageType decodes a persisted identifier. Unrecognized values fall
// back to coffee so old or corrupted rows still load.
func ParseBeverageType(id string) BeverageType {
	t, _ := LookupBeverageType(id)
	return t
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if r.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	if !r.Type.Valid() {
		return ErrUnknownBeverage
	}
	if r.Quantity < MinQuantity || r.Quantity > MaxQuantity {
		return fmt.Errorf("%w: %d (must be between %d and %d)", ErrInvalidQuantity, r.Quantity, MinQuantity, MaxQuantity)
	}
	return nil
}
