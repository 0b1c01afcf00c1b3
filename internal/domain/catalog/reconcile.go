package catalog

import "sort"

// Plan lists the statements needed to move the stored presentations of a
// product to the desired set. Presentations are matched by ID when the
// desired entry carries one, otherwise by name.
type Plan struct {
	Add    []Item
	Change []Item
	Remove []Item
}

func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Change) == 0 && len(p.Remove) == 0
}

func DiffPresentations(current, desired []Item) Plan {
	byID := make(map[int64]Item, len(current))
	byName := make(map[string]Item, len(current))
	for _, it := range current {
		byID[it.ID] = it
		byName[it.Name] = it
	}

	var p Plan
	kept := make(map[int64]bool, len(desired))
	for _, want := range desired {
		have, ok := byID[want.ID]
		if want.ID == 0 || !ok {
			have, ok = byName[want.Name]
		}
		if !ok || kept[have.ID] {
			want.ID = 0
			p.Add = append(p.Add, want)
			continue
		}
		kept[have.ID] = true
		want.ID = have.ID
		want.ProductID = have.ProductID
		if !have.sameAs(want) {
			p.Change = append(p.Change, want)
		}
	}
	for _, it := range current {
		if !kept[it.ID] {
			p.Remove = append(p.Remove, it)
		}
	}
	sort.Slice(p.Remove, func(i, j int) bool { return p.Remove[i].ID < p.Remove[j].ID })
	return p
}
