package game

import (
	"fmt"
	"sort"
	"strings"

	appErr "triad-service/pkg/errors"
)

type Rule string

const (
	RuleSame      Rule = "same"
	RulePlus      Rule = "plus"
	RuleSameWall  Rule = "samewall"
	RulePlusWall  Rule = "pluswall"
	RuleCombo     Rule = "combo"
	RuleElemental Rule = "elemental"
	RuleOpen      Rule = "open"
	RuleRandom    Rule = "random"
)

var knownRules = map[Rule]bool{
	RuleSame:      true,
	RulePlus:      true,
	RuleSameWall:  true,
	RulePlusWall:  true,
	RuleCombo:     true,
	RuleElemental: true,
	RuleOpen:      true,
	RuleRandom:    true,
}

// RuleSet is the set of optional rules enabled for a match.
type RuleSet map[Rule]bool

func NewRuleSet(rules ...Rule) RuleSet {
	rs := make(RuleSet, len(rules))
	for _, r := range rules {
		rs[r] = true
	}
	return rs
}

// ParseRules rejects unknown names; duplicates collapse.
func ParseRules(names []string) (RuleSet, error) {
	rs := make(RuleSet, len(names))
	for _, name := range names {
		r := Rule(strings.ToLower(strings.TrimSpace(name)))
		if !knownRules[r] {
			return nil, fmt.Errorf("%w: %q", appErr.ErrInvalidRule, name)
		}
		rs[r] = true
	}
	return rs, nil
}

func (rs RuleSet) Has(r Rule) bool {
	return rs[r]
}

func (rs RuleSet) List() []Rule {
	out := make([]Rule, 0, len(rs))
	for r, on := range rs {
		if on {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Key is a stable string used to compare rule sets across matches.
func (rs RuleSet) Key() string {
	list := rs.List()
	parts := make([]string, len(list))
	for i, r := range list {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func (rs RuleSet) sameEnabled() bool { return rs[RuleSame] || rs[RuleSameWall] }
func (rs RuleSet) plusEnabled() bool { return rs[RulePlus] || rs[RulePlusWall] }

type TradeRule string

const (
	TradeNone   TradeRule = "none"
	TradeOne    TradeRule = "one"
	TradeDirect TradeRule = "direct"
	TradeAll    TradeRule = "all"
)

func ParseTradeRule(name string) (TradeRule, error) {
	switch t := TradeRule(strings.ToLower(strings.TrimSpace(name))); t {
	case "":
		return TradeNone, nil
	case TradeNone, TradeOne, TradeDirect, TradeAll:
		return t, nil
	default:
		return "", fmt.Errorf("%w: trade rule %q", appErr.ErrInvalidRule, name)
	}
}

// SettlesImmediately reports whether a finished board completes the match
// without a trading phase.
func (t TradeRule) SettlesImmediately() bool {
	return t != TradeOne
}
