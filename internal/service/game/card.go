package game

import (
	"fmt"
	"sort"
	"strconv"
)

type Element string

const (
	ElementNone    Element = "none"
	ElementFire    Element = "fire"
	ElementIce     Element = "ice"
	ElementThunder Element = "thunder"
	ElementEarth   Element = "earth"
	ElementPoison  Element = "poison"
	ElementWind    Element = "wind"
	ElementWater   Element = "water"
	ElementHoly    Element = "holy"
)

// BoardElements are the terrain tags that can be assigned to spaces.
var BoardElements = []Element{
	ElementFire, ElementIce, ElementThunder, ElementEarth,
	ElementPoison, ElementWind, ElementWater, ElementHoly,
}

// CardRef identifies a catalog card.
type CardRef struct {
	Kind    string `json:"kind"`
	Edition int    `json:"edition"`
}

func (r CardRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.Edition)
}

type Card struct {
	Kind    string  `json:"kind"`
	Edition int     `json:"edition"`
	Name    string  `json:"name"`
	Up      int     `json:"up"`
	Down    int     `json:"down"`
	Left    int     `json:"left"`
	Right   int     `json:"right"`
	Element Element `json:"element"`
}

func (c Card) Ref() CardRef {
	return CardRef{Kind: c.Kind, Edition: c.Edition}
}

func (c Card) strength(d Direction) int {
	switch d {
	case Up:
		return c.Up
	case Down:
		return c.Down
	case Left:
		return c.Left
	case Right:
		return c.Right
	}
	return 0
}

// FormatStrength renders 10 as "A".
func FormatStrength(v int) string {
	if v == 10 {
		return "A"
	}
	return strconv.Itoa(v)
}

func card(kind string, edition int, name string, up, right, down, left int, el Element) Card {
	return Card{Kind: kind, Edition: edition, Name: name, Up: up, Down: down, Left: left, Right: right, Element: el}
}

var catalog = []Card{
	// edition 1
	card("mudcrawler", 1, "Mudcrawler", 1, 4, 1, 5, ElementNone),
	card("lantern-moth", 1, "Lantern Moth", 5, 1, 1, 3, ElementNone),
	card("reed-snake", 1, "Reed Snake", 1, 3, 3, 5, ElementNone),
	card("ember-imp", 1, "Ember Imp", 6, 1, 1, 2, ElementFire),
	card("frost-hare", 1, "Frost Hare", 2, 3, 1, 5, ElementIce),
	card("pebble-golem", 1, "Pebble Golem", 2, 1, 4, 4, ElementEarth),
	card("spore-cap", 1, "Spore Cap", 1, 5, 4, 1, ElementPoison),
	card("gust-sprite", 1, "Gust Sprite", 3, 5, 2, 1, ElementWind),
	card("tide-crab", 1, "Tide Crab", 2, 1, 6, 1, ElementWater),
	card("spark-beetle", 1, "Spark Beetle", 4, 3, 2, 4, ElementThunder),
	card("thornback", 1, "Thornback", 2, 6, 1, 1, ElementNone),
	card("wisp", 1, "Wisp", 3, 1, 5, 2, ElementHoly),
	// edition 2
	card("cinder-hound", 2, "Cinder Hound", 5, 3, 1, 5, ElementFire),
	card("glacier-ram", 2, "Glacier Ram", 4, 6, 2, 2, ElementIce),
	card("storm-kite", 2, "Storm Kite", 6, 2, 6, 3, ElementThunder),
	card("bog-witch", 2, "Bog Witch", 3, 5, 5, 2, ElementPoison),
	card("cliff-warden", 2, "Cliff Warden", 5, 2, 5, 3, ElementEarth),
	card("reef-serpent", 2, "Reef Serpent", 6, 1, 4, 5, ElementWater),
	card("sky-lancer", 2, "Sky Lancer", 3, 6, 3, 4, ElementWind),
	card("iron-sentinel", 2, "Iron Sentinel", 4, 4, 5, 2, ElementNone),
	card("dawn-acolyte", 2, "Dawn Acolyte", 2, 4, 6, 4, ElementHoly),
	card("grave-knight", 2, "Grave Knight", 6, 4, 3, 3, ElementNone),
	// edition 3
	card("magma-titan", 3, "Magma Titan", 7, 5, 4, 3, ElementFire),
	card("ice-empress", 3, "Ice Empress", 3, 7, 6, 4, ElementIce),
	card("thunder-roc", 3, "Thunder Roc", 6, 5, 5, 6, ElementThunder),
	card("stone-colossus", 3, "Stone Colossus", 5, 3, 7, 6, ElementEarth),
	card("venom-queen", 3, "Venom Queen", 7, 6, 2, 5, ElementPoison),
	card("leviathan", 3, "Leviathan", 7, 7, 1, 4, ElementWater),
	card("tempest-drake", 3, "Tempest Drake", 4, 6, 7, 5, ElementWind),
	card("silver-paladin", 3, "Silver Paladin", 6, 7, 3, 6, ElementHoly),
	// edition 4
	card("phoenix", 4, "Phoenix", 7, 10, 7, 3, ElementFire),
	card("frost-wyrm", 4, "Frost Wyrm", 10, 4, 8, 6, ElementIce),
	card("world-serpent", 4, "World Serpent", 8, 5, 10, 6, ElementEarth),
	card("archon", 4, "Archon", 6, 8, 5, 10, ElementHoly),
	card("void-king", 4, "Void King", 10, 7, 4, 8, ElementNone),
}

var catalogIndex = func() map[CardRef]Card {
	idx := make(map[CardRef]Card, len(catalog))
	for _, c := range catalog {
		idx[c.Ref()] = c
	}
	return idx
}()

// LookupCard resolves a reference against the static catalog.
func LookupCard(ref CardRef) (Card, bool) {
	c, ok := catalogIndex[ref]
	return c, ok
}

// Catalog returns every card ordered by edition then kind.
func Catalog() []Card {
	out := append([]Card(nil), catalog...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Edition != out[j].Edition {
			return out[i].Edition < out[j].Edition
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// CatalogEdition returns the cards printed in one edition.
func CatalogEdition(edition int) []Card {
	out := make([]Card, 0)
	for _, c := range Catalog() {
		if c.Edition == edition {
			out = append(out, c)
		}
	}
	return out
}
