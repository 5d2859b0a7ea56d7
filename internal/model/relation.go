package model

import "fmt"

// JoinProperties resolves the pair of properties a relation joins on. Either
// side may be declared explicitly on the relation; when omitted it defaults
// to that side's primary key. The lookup accepts a property name first and
// falls back to matching a column name, since annotated documents use both
// conventions.
func (r *Relation) JoinProperties(parent *SchemaObject) (*Property, *Property, error) {
	child, err := r.Child()
	if err != nil {
		return nil, nil, err
	}

	parentProp, err := resolveJoinSide(parent, r.ParentProperty)
	if err != nil {
		return nil, nil, fmt.Errorf("relation %q parent side: %w", r.Name, err)
	}
	childProp, err := resolveJoinSide(child, r.ChildProperty)
	if err != nil {
		return nil, nil, fmt.Errorf("relation %q child side: %w", r.Name, err)
	}
	return parentProp, childProp, nil
}

func resolveJoinSide(s *SchemaObject, declared string) (*Property, error) {
	if declared == "" {
		if s.PrimaryKey == nil {
			return nil, fmt.Errorf("entity %q has no primary key to join on", s.Entity)
		}
		return &s.PrimaryKey.Property, nil
	}
	if p, ok := s.Property(declared); ok {
		return p, nil
	}
	for _, p := range s.Properties {
		if p.ColumnName == declared {
			return p, nil
		}
	}
	return nil, fmt.Errorf("entity %q has no property or column %q", s.Entity, declared)
}
