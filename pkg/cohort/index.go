package cohort

import (
	"sort"
	"time"

	"weekly-cohorts/pkg/segtree"
)

// Entry décrit une cohorte figée: sa semaine et ses segments d'IDs triés.
type Entry struct {
	CohortID  int
	WeekStart time.Time
	Segments  []segtree.Segment
	Count     int
}

// Min retourne le plus petit ID de la cohorte.
func (e *Entry) Min() uint64 {
	return e.Segments[0].Lo
}

// Max retourne le plus grand ID de la cohorte.
func (e *Entry) Max() uint64 {
	return e.Segments[len(e.Segments)-1].Hi
}

// Contains indique si id appartient à la cohorte.
func (e *Entry) Contains(id uint64) bool {
	return segtree.Search(e.Segments, id)
}

// Index est l'index figé ID client -> cohorte, trié par ID minimum de cohorte.
type Index struct {
	entries []*Entry
	// reach[i] = max(entries[0..i].Max()): borne l'arrêt du parcours arrière.
	reach []uint64
	byID  map[int]*Entry
}

// NewIndex trie les entrées par ID minimum. Les entrées sans segment sont ignorées.
func NewIndex(entries []*Entry) *Index {
	kept := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if len(e.Segments) > 0 {
			kept = append(kept, e)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Min() != kept[j].Min() {
			return kept[i].Min() < kept[j].Min()
		}
		return kept[i].CohortID < kept[j].CohortID
	})

	x := &Index{
		entries: kept,
		reach:   make([]uint64, len(kept)),
		byID:    make(map[int]*Entry, len(kept)),
	}
	var reach uint64
	for i, e := range kept {
		reach = max(reach, e.Max())
		x.reach[i] = reach
		x.byID[e.CohortID] = e
	}
	return x
}

// Lookup retourne la cohorte de customerID. ok est faux si l'ID est inconnu.
//
// Les plages de cohortes peuvent se chevaucher quand le désordre des IDs traverse une
// frontière de semaine: on part de la dernière cohorte dont le minimum est <= customerID
// et on remonte tant qu'une cohorte précédente peut encore couvrir l'ID.
func (x *Index) Lookup(customerID uint64) (cohortID int, ok bool) {
	i := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Min() > customerID
	}) - 1

	for ; i >= 0 && x.reach[i] >= customerID; i-- {
		if x.entries[i].Contains(customerID) {
			return x.entries[i].CohortID, true
		}
	}
	return 0, false
}

// Cohort retourne l'entrée de cohortID.
func (x *Index) Cohort(cohortID int) (*Entry, bool) {
	e, ok := x.byID[cohortID]
	return e, ok
}

// WeekStart retourne le lundi de la semaine de cohortID.
func (x *Index) WeekStart(cohortID int) (time.Time, bool) {
	e, ok := x.byID[cohortID]
	if !ok {
		return time.Time{}, false
	}
	return e.WeekStart, true
}

// CohortIDs retourne les IDs de cohorte du plus récent au plus ancien.
func (x *Index) CohortIDs() []int {
	ids := make([]int, 0, len(x.byID))
	for id := range x.byID {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	return ids
}

// Len retourne le nombre de cohortes.
func (x *Index) Len() int {
	return len(x.entries)
}

// Customers retourne la somme des clients distincts de chaque cohorte.
func (x *Index) Customers() int {
	total := 0
	for _, e := range x.entries {
		total += e.Count
	}
	return total
}
