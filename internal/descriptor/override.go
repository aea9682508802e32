package descriptor

import "sync"

// OverrideResult is the outcome of matching an inherited function against a
// declared one.
type OverrideResult int

const (
	// Incompatible functions are unrelated.
	Incompatible OverrideResult = iota
	// Overridable means the declared function overrides the inherited one.
	Overridable
	// Conflict means the signatures clash but the declared function cannot
	// override the inherited one.
	Conflict
)

func (r OverrideResult) String() string {
	switch r {
	case Overridable:
		return "overridable"
	case Conflict:
		return "conflict"
	}
	return "incompatible"
}

// IsOverridableBy matches an inherited function against a declared one by
// name, type parameter count, receiver and value parameter types. Matching
// parameters with a different return type is a conflict.
func IsOverridableBy(super, sub *Function) OverrideResult {
	if super.name != sub.name {
		return Incompatible
	}
	if len(super.typeParams) != len(sub.typeParams) || len(super.params) != len(sub.params) {
		return Incompatible
	}
	if (super.receiver == nil) != (sub.receiver == nil) {
		return Incompatible
	}
	if super.signature() != sub.signature() {
		return Incompatible
	}
	if super.returnType.key() != sub.returnType.key() {
		return Conflict
	}
	return Overridable
}

// OverrideSink receives the output of GenerateOverrides.
type OverrideSink interface {
	AddToScope(fake *Function)
	Conflict(fromSuper, fromCurrent *Function)
}

// ConflictReporter receives override conflicts.
type ConflictReporter interface {
	Conflict(fromSuper, fromCurrent *Function)
}

// ScopeSink collects fake overrides and forwards conflicts to Reporter, if
// set.
type ScopeSink struct {
	Added    []*Function
	Reporter ConflictReporter
}

func (s *ScopeSink) AddToScope(fake *Function) { s.Added = append(s.Added, fake) }

func (s *ScopeSink) Conflict(fromSuper, fromCurrent *Function) {
	if s.Reporter != nil {
		s.Reporter.Conflict(fromSuper, fromCurrent)
	}
}

// OverrideConflict is one reported conflict.
type OverrideConflict struct {
	FromSuper   *Function
	FromCurrent *Function
}

// ConflictLog records conflicts. It is safe for concurrent use.
type ConflictLog struct {
	mu        sync.Mutex
	conflicts []OverrideConflict
}

func (l *ConflictLog) Conflict(fromSuper, fromCurrent *Function) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conflicts = append(l.conflicts, OverrideConflict{FromSuper: fromSuper, FromCurrent: fromCurrent})
}

// Conflicts returns a snapshot of the recorded conflicts.
func (l *ConflictLog) Conflicts() []OverrideConflict {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]OverrideConflict(nil), l.conflicts...)
}

// GenerateOverrides binds the functions declared in current to the
// inherited functions they override, and emits a fake override, owned by
// current, for every inherited function nothing overrides.
//
// An inherited function claimed by two declarations is reported once per
// extra claimant. Declared functions get their overridden list filled in;
// they must not have been published yet.
func GenerateOverrides(current Descriptor, fromSupers, fromCurrent []*Function, sink OverrideSink) {
	claimed := make(map[*Function]*Function, len(fromSupers))
	for _, d := range fromCurrent {
		for _, s := range fromSupers {
			switch IsOverridableBy(s, d) {
			case Overridable:
				if _, ok := claimed[s]; ok {
					sink.Conflict(s, d)
					continue
				}
				claimed[s] = d
				d.overridden = append(d.overridden, s.Unsubstituted())
			case Conflict:
				sink.Conflict(s, d)
				claimed[s] = d
			}
		}
	}

	for _, s := range fromSupers {
		if _, ok := claimed[s]; ok {
			continue
		}
		sink.AddToScope(s.Copy(current, CallableFakeOverride))
	}
}
