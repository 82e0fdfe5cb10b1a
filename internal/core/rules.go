package core

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewFamilyReferenceRule())
	engine.Register(NewPedigreeIntegrityRule())
	return engine
}

// changedPeople returns the post-change state of every created or updated person.
func changedPeople(changes []Change) []Person {
	var out []Person
	for _, change := range changes {
		if change.Entity != EntityPerson {
			continue
		}
		if p, ok := change.After.(Person); ok {
			out = append(out, p)
		}
	}
	return out
}
