package policy

import (
	"sort"
	"sync"
)

// Evaluator decides whether a subject (an application, a backup test, a
// restore) may proceed. Evaluation order is fixed: explicit whitelist, then
// blacklist, then quarantine set, then enabled policies by descending
// priority with first-matching-rule-wins, then default deny.
//
// The same evaluator gates backup tests/restores and infrastructure
// application execution control; both share the decision semantics.
type Evaluator struct {
	mu          sync.RWMutex
	whitelist   map[string]struct{}
	blacklist   map[string]struct{}
	quarantined map[string]struct{}
	policies    []Policy
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		whitelist:   make(map[string]struct{}),
		blacklist:   make(map[string]struct{}),
		quarantined: make(map[string]struct{}),
	}
}

func (e *Evaluator) Whitelist(subjectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.whitelist[subjectID] = struct{}{}
}

func (e *Evaluator) Blacklist(subjectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blacklist[subjectID] = struct{}{}
}

func (e *Evaluator) Quarantine(subjectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quarantined[subjectID] = struct{}{}
}

func (e *Evaluator) Release(subjectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.whitelist, subjectID)
	delete(e.blacklist, subjectID)
	delete(e.quarantined, subjectID)
}

// AddPolicy registers a policy. Policies are kept sorted by descending
// priority so Decide walks them in evaluation order.
func (e *Evaluator) AddPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, p)
	sort.SliceStable(e.policies, func(i, j int) bool {
		return e.policies[i].Priority > e.policies[j].Priority
	})
}

func (e *Evaluator) Decide(subjectID string, ctx Context) Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.whitelist[subjectID]; ok {
		return DecisionAllow
	}
	if _, ok := e.blacklist[subjectID]; ok {
		return DecisionDeny
	}
	if _, ok := e.quarantined[subjectID]; ok {
		return DecisionQuarantine
	}

	for _, p := range e.policies {
		if !p.Enabled {
			continue
		}
		for _, r := range p.Rules {
			if r.Matches(ctx) {
				return r.Action
			}
		}
	}

	return DecisionDeny
}
