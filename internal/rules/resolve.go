package rules

import "fmt"

// UnresolvedLock is one lock/unlock reference captured during rule
// construction, before every rule ID in the configuration is known
// (spec.md §9: "resolve in two passes — first construct all rules, then
// resolve each lock/unlock id-string into a non-owning handle").
type UnresolvedLock struct {
	Owner    *Rule
	Outcome  Outcome
	TargetID string
	Lock     bool
}

// Resolve binds each UnresolvedLock's TargetID to the matching Rule in
// rules by ID, appending a RuleLock to the owner. Cycles (A locks B, B
// locks A) are legal and not rejected here. An ID with no matching rule
// is a configuration error, fatal at startup per spec.md §7.6.
func Resolve(rules []*Rule, pending []UnresolvedLock) error {
	byID := make(map[string]*Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}
	for _, u := range pending {
		target, ok := byID[u.TargetID]
		if !ok {
			return fmt.Errorf("rules: rule %q locks unknown rule id %q", u.Owner.ID, u.TargetID)
		}
		u.Owner.AddLock(u.Outcome, RuleLock{Target: target, Lock: u.Lock})
	}
	return nil
}
