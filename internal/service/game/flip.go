package game

import "sort"

type Direction string

const (
	None  Direction = "none"
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// directions is the evaluation order used everywhere in a resolution.
var directions = [4]Direction{Up, Down, Left, Right}

func (d Direction) index() int {
	switch d {
	case Up:
		return 0
	case Down:
		return 1
	case Left:
		return 2
	case Right:
		return 3
	}
	return -1
}

func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return None
}

const (
	BoardSize = 9
	NoOwner   = -1

	// wallStrength is the value of the virtual neighbour behind a board edge.
	wallStrength = 10
)

type Space struct {
	Card    *Card   `json:"card,omitempty"`
	Owner   int     `json:"owner"`
	Element Element `json:"element"`
}

func (s Space) Empty() bool {
	return s.Card == nil
}

// Board is laid out row-major: 0 1 2 / 3 4 5 / 6 7 8.
type Board [BoardSize]Space

func EmptyBoard() Board {
	var b Board
	for i := range b {
		b[i] = Space{Owner: NoOwner, Element: ElementNone}
	}
	return b
}

func (b Board) Full() bool {
	for _, s := range b {
		if s.Empty() {
			return false
		}
	}
	return true
}

// neighbor returns the index adjacent to space in direction d, or -1 past an edge.
func neighbor(space int, d Direction) int {
	row, col := space/3, space%3
	switch d {
	case Up:
		if row == 0 {
			return -1
		}
		return space - 3
	case Down:
		if row == 2 {
			return -1
		}
		return space + 3
	case Left:
		if col == 0 {
			return -1
		}
		return space - 1
	case Right:
		if col == 2 {
			return -1
		}
		return space + 1
	}
	return -1
}

type ChangeKind string

const (
	ChangePlace ChangeKind = "place"
	ChangeFlip  ChangeKind = "flip"
)

// Change describes what happened to one space. For flips, Direction is the
// side of the flipped card that faced the card which took it.
type Change struct {
	Kind      ChangeKind `json:"kind"`
	Direction Direction  `json:"direction"`
}

// ChangeSet holds the changes of one wave, keyed by space index.
type ChangeSet map[int]Change

func (cs ChangeSet) Spaces() []int {
	out := make([]int, 0, len(cs))
	for idx := range cs {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

type strengths [BoardSize][4]int

func effectiveStrengths(board *Board, rules RuleSet) strengths {
	var str strengths
	elemental := rules.Has(RuleElemental)
	for i, s := range board {
		if s.Empty() {
			continue
		}
		delta := 0
		if elemental && s.Element != "" && s.Element != ElementNone {
			if s.Card.Element == s.Element {
				delta = 1
			} else {
				delta = -1
			}
		}
		for _, d := range directions {
			str[i][d.index()] = s.Card.strength(d) + delta
		}
	}
	return str
}

// Resolve computes the ordered waves of changes caused by the card already
// placed at board[played]. The board passed in is not modified.
func Resolve(board Board, rules RuleSet, played int) []ChangeSet {
	work := board
	str := effectiveStrengths(&work, rules)
	owner := work[played].Owner

	result := []ChangeSet{{played: {Kind: ChangePlace, Direction: None}}}
	touched := map[int]bool{played: true}

	special := specialFlips(&work, &str, rules, played)
	if len(special) == 0 {
		basic := ChangeSet{}
		basicFlips(&work, &str, played, touched, basic)
		if len(basic) > 0 {
			result = append(result, basic)
		}
		return result
	}

	for idx := range special {
		work[idx].Owner = owner
		touched[idx] = true
	}
	result = append(result, special)
	if !rules.Has(RuleCombo) {
		return result
	}

	wave := special
	for {
		next := ChangeSet{}
		for _, src := range wave.Spaces() {
			basicFlips(&work, &str, src, touched, next)
		}
		if len(next) == 0 {
			break
		}
		result = append(result, next)
		wave = next
	}
	return result
}

type side struct {
	dir    Direction
	space  int
	wall   bool
	mine   int
	facing int
}

// specialFlips evaluates same and plus at the played space. A side only
// flips when at least two sides qualify.
func specialFlips(work *Board, str *strengths, rules RuleSet, played int) ChangeSet {
	flips := ChangeSet{}
	if !rules.sameEnabled() && !rules.plusEnabled() {
		return flips
	}

	sides := make([]side, 0, 4)
	for _, d := range directions {
		mine := str[played][d.index()]
		n := neighbor(played, d)
		if n < 0 {
			sides = append(sides, side{dir: d, space: -1, wall: true, mine: mine, facing: wallStrength})
			continue
		}
		if work[n].Empty() {
			continue
		}
		sides = append(sides, side{dir: d, space: n, mine: mine, facing: str[n][d.Opposite().index()]})
	}

	hits := make([]bool, len(sides))
	if rules.sameEnabled() {
		for i, s := range sides {
			if s.wall && !rules.Has(RuleSameWall) {
				continue
			}
			if s.mine == s.facing {
				hits[i] = true
			}
		}
	}
	if rules.plusEnabled() {
		for i, s := range sides {
			if s.wall && !rules.Has(RulePlusWall) {
				continue
			}
			for j, o := range sides {
				if i == j || (o.wall && !rules.Has(RulePlusWall)) {
					continue
				}
				if s.mine+s.facing == o.mine+o.facing {
					hits[i] = true
					break
				}
			}
		}
	}

	count := 0
	for _, hit := range hits {
		if hit {
			count++
		}
	}
	if count < 2 {
		return flips
	}

	owner := work[played].Owner
	for i, s := range sides {
		if !hits[i] || s.wall || work[s.space].Owner == owner {
			continue
		}
		flips[s.space] = Change{Kind: ChangeFlip, Direction: s.dir.Opposite()}
	}
	return flips
}

// basicFlips applies the greater-value rule from src and records every flip
// in out. Flipped spaces change owner in work and join touched.
func basicFlips(work *Board, str *strengths, src int, touched map[int]bool, out ChangeSet) {
	owner := work[src].Owner
	for _, d := range directions {
		n := neighbor(src, d)
		if n < 0 || touched[n] || work[n].Empty() || work[n].Owner == owner {
			continue
		}
		if str[src][d.index()] > str[n][d.Opposite().index()] {
			out[n] = Change{Kind: ChangeFlip, Direction: d.Opposite()}
			work[n].Owner = owner
			touched[n] = true
		}
	}
}
