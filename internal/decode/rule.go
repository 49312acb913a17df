package decode

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SlotType declares how a 32-byte calldata word is interpreted.
type SlotType string

const (
	SlotAddress SlotType = "address"
	SlotUint256 SlotType = "uint256"
	SlotBool    SlotType = "bool"
	SlotIgnored SlotType = "ignored"
)

// SlotRole declares the semantic meaning of a decoded word.
type SlotRole string

const (
	RoleSender   SlotRole = "sender"
	RoleReceiver SlotRole = "receiver"
	RoleAmount   SlotRole = "amount"
	RoleIgnored  SlotRole = "ignored"
)

// Slot is one 32-byte word interpretation within a rule.
type Slot struct {
	Type SlotType `mapstructure:"type"`
	Role SlotRole `mapstructure:"role"`
}

// Rule maps a 4-byte method selector to an ordered slot walk.
type Rule struct {
	Selector string `mapstructure:"selector"`
	Method   string `mapstructure:"method"`
	Slots    []Slot `mapstructure:"slots"`
}

// Registry resolves decode rules by selector. Loaded once per run and
// treated as immutable afterwards.
type Registry struct {
	sets map[string]map[string]Rule
}

// NewRegistry validates and indexes rule sets keyed by set name.
func NewRegistry(sets map[string][]Rule) (*Registry, error) {
	indexed := make(map[string]map[string]Rule, len(sets))
	for name, rules := range sets {
		bySelector := make(map[string]Rule, len(rules))
		for _, rule := range rules {
			selector, err := normalizeSelector(rule.Selector)
			if err != nil {
				return nil, fmt.Errorf("rule set %s method %s: %w", name, rule.Method, err)
			}
			if rule.Method == "" {
				return nil, fmt.Errorf("rule set %s selector %s: method name is required", name, selector)
			}
			for i, slot := range rule.Slots {
				if err := validateSlot(slot); err != nil {
					return nil, fmt.Errorf("rule set %s method %s slot %d: %w", name, rule.Method, i, err)
				}
			}
			if _, exists := bySelector[selector]; exists {
				return nil, fmt.Errorf("rule set %s: duplicate selector %s", name, selector)
			}
			rule.Selector = selector
			bySelector[selector] = rule
		}
		indexed[name] = bySelector
	}
	return &Registry{sets: indexed}, nil
}

// Resolve looks up the rule for a selector within a rule set. A miss is a
// defined fallback outcome, not an error.
func (r *Registry) Resolve(ruleSet, selector string) (Rule, bool) {
	set, ok := r.sets[ruleSet]
	if !ok {
		return Rule{}, false
	}
	rule, ok := set[strings.ToLower(selector)]
	return rule, ok
}

// HasSet reports whether a rule set name is known.
func (r *Registry) HasSet(name string) bool {
	_, ok := r.sets[name]
	return ok
}

func normalizeSelector(input string) (string, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	data, err := hexutil.Decode(input)
	if err != nil {
		return "", fmt.Errorf("invalid selector %q: %w", input, err)
	}
	if len(data) != 4 {
		return "", fmt.Errorf("selector %q must be 4 bytes", input)
	}
	return input, nil
}

func validateSlot(slot Slot) error {
	switch slot.Type {
	case SlotAddress, SlotUint256, SlotBool, SlotIgnored:
	default:
		return fmt.Errorf("unsupported slot type %q", slot.Type)
	}
	switch slot.Role {
	case RoleSender, RoleReceiver, RoleAmount, RoleIgnored:
	default:
		return fmt.Errorf("unsupported slot role %q", slot.Role)
	}
	return nil
}
