// Package segtree maintient l'ensemble des IDs clients d'une cohorte sous forme
// d'intervalles fermés disjoints et non adjacents.
//
// L'hypothèse de départ: la fonction ID client -> date de création est presque monotone.
// Dans le cas monotone, une cohorte se réduit à un seul segment. Les IDs arrivés dans le
// désordre sont rangés dans un arbre dont chaque noeud porte son propre segment et une
// liste ordonnée d'enfants, tous strictement au-dessus de ce segment. La profondeur de
// l'arbre croît avec le désordre de l'entrée, pas avec le nombre d'IDs.
//
// Une fois l'ingestion terminée, Flatten convertit l'arbre en tableau trié de segments
// (recherche binaire en O(log S)) et fige l'arbre.
package segtree

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	// ErrInvariantViolation signale un arbre corrompu: c'est un bug, pas une donnée invalide.
	ErrInvariantViolation = errors.New("segment tree invariant violation")
	// ErrFrozen est retourné par Insert après Flatten.
	ErrFrozen = errors.New("segment tree is frozen")
)

// Segment est l'intervalle fermé [Lo, Hi].
type Segment struct {
	Lo uint64
	Hi uint64
}

// Len retourne le nombre d'IDs couverts par le segment.
func (s Segment) Len() int {
	return int(s.Hi-s.Lo) + 1
}

// Contains indique si id est dans [Lo, Hi].
func (s Segment) Contains(id uint64) bool {
	return s.Lo <= id && id <= s.Hi
}

func (s Segment) String() string {
	return fmt.Sprintf("[%d, %d]", s.Lo, s.Hi)
}

// adjacent retourne vrai si b == a+1 (sans débordement).
func adjacent(a, b uint64) bool {
	return b > a && b-a == 1
}

// node porte son propre segment, ses enfants (triés, tous > segment.Hi+1) et la plage
// totale couverte par son sous-arbre.
type node struct {
	segment  Segment
	subtree  Segment
	children []*node
}

func newNode(id uint64) *node {
	return &node{
		segment: Segment{Lo: id, Hi: id},
		subtree: Segment{Lo: id, Hi: id},
	}
}

// wrap crée le noeud (id, id) dont l'unique enfant est child.
func wrap(id uint64, child *node) *node {
	return &node{
		segment:  Segment{Lo: id, Hi: id},
		subtree:  Segment{Lo: id, Hi: child.subtree.Hi},
		children: []*node{child},
	}
}

// search retourne l'index du premier enfant dont la plage commence après id.
func (n *node) search(id uint64) int {
	return sort.Search(len(n.children), func(i int) bool {
		return n.children[i].subtree.Lo > id
	})
}

func (n *node) extendDown(id uint64) {
	n.segment.Lo = id
	n.subtree.Lo = id
}

func (n *node) refreshHi() {
	if len(n.children) == 0 {
		n.subtree.Hi = n.segment.Hi
		return
	}
	n.subtree.Hi = n.children[len(n.children)-1].subtree.Hi
}

// absorbFirstChild fusionne le premier enfant dans le segment du noeud s'ils se touchent.
// Les enfants du premier enfant passent en tête de la liste.
func (n *node) absorbFirstChild() {
	if len(n.children) == 0 {
		return
	}
	first := n.children[0]
	if !adjacent(n.segment.Hi, first.segment.Lo) {
		return
	}
	n.segment.Hi = first.segment.Hi
	n.children = append(first.children, n.children[1:]...)
}

// detachLast retire la feuille la plus à droite du sous-arbre de children[i]
// (children[i] lui-même s'il n'a pas d'enfants) et la retourne.
func (n *node) detachLast(i int) *node {
	child := n.children[i]
	if len(child.children) == 0 {
		n.children = slices.Delete(n.children, i, i+1)
		return child
	}
	leaf := child.detachLast(len(child.children) - 1)
	child.refreshHi()
	return leaf
}

// mergeSiblings fusionne children[i] et children[i+1] quand leurs plages se touchent:
// le segment le plus haut du sous-arbre inférieur rejoint le segment du voisin supérieur.
func (n *node) mergeSiblings(i int) {
	upper := n.children[i+1]
	if !adjacent(n.children[i].subtree.Hi, upper.subtree.Lo) {
		return
	}
	leaf := n.detachLast(i)
	upper.segment.Lo = leaf.segment.Lo
	upper.subtree.Lo = leaf.segment.Lo
}

// insert ajoute id au sous-arbre. Précondition: id >= n.segment.Lo.
func (n *node) insert(id uint64) error {
	if id < n.segment.Lo {
		return fmt.Errorf("%w: id %d below node segment %s", ErrInvariantViolation, id, n.segment)
	}
	if id <= n.segment.Hi {
		return nil
	}
	if id > n.subtree.Hi {
		n.subtree.Hi = id
	}

	// Cas le plus fréquent: l'ID prolonge le segment du noeud.
	if adjacent(n.segment.Hi, id) {
		n.segment.Hi = id
		n.absorbFirstChild()
		return nil
	}

	if len(n.children) == 0 {
		n.children = append(n.children, newNode(id))
		return nil
	}

	i := n.search(id)
	switch {
	case i == 0:
		// Sous le premier enfant: l'étendre vers le bas, sinon l'envelopper.
		first := n.children[0]
		if adjacent(id, first.subtree.Lo) {
			first.extendDown(id)
		} else {
			n.children[0] = wrap(id, first)
		}
		return nil

	case i == len(n.children):
		last := n.children[i-1]
		if id > last.subtree.Hi && !adjacent(last.subtree.Hi, id) {
			n.children = append(n.children, newNode(id))
			return nil
		}
		return last.insert(id)

	default:
		prev, next := n.children[i-1], n.children[i]
		if adjacent(id, next.subtree.Lo) {
			next.extendDown(id)
		} else if err := prev.insert(id); err != nil {
			return err
		}
		n.mergeSiblings(i - 1)
		return nil
	}
}

func (n *node) contains(id uint64) bool {
	for cur := n; ; {
		if !cur.subtree.Contains(id) {
			return false
		}
		if id <= cur.segment.Hi {
			return true
		}
		i := cur.search(id) - 1
		if i < 0 {
			return false
		}
		cur = cur.children[i]
	}
}

func (n *node) count() int {
	total := n.segment.Len()
	for _, c := range n.children {
		total += c.count()
	}
	return total
}

// validate vérifie récursivement les invariants du noeud et de ses descendants.
func (n *node) validate() error {
	if n.segment.Lo > n.segment.Hi {
		return fmt.Errorf("%w: inverted segment %s", ErrInvariantViolation, n.segment)
	}
	if n.subtree.Lo != n.segment.Lo {
		return fmt.Errorf("%w: subtree %s does not start at segment %s", ErrInvariantViolation, n.subtree, n.segment)
	}
	wantHi := n.segment.Hi
	if len(n.children) > 0 {
		wantHi = n.children[len(n.children)-1].subtree.Hi
	}
	if n.subtree.Hi != wantHi {
		return fmt.Errorf("%w: subtree %s should end at %d", ErrInvariantViolation, n.subtree, wantHi)
	}

	prevHi := n.segment.Hi
	for _, c := range n.children {
		if c.subtree.Lo <= prevHi || adjacent(prevHi, c.subtree.Lo) {
			return fmt.Errorf("%w: child %s overlaps or touches %d", ErrInvariantViolation, c.subtree, prevHi)
		}
		if err := c.validate(); err != nil {
			return err
		}
		prevHi = c.subtree.Hi
	}
	return nil
}

// Tree est l'ensemble d'IDs d'une cohorte. La valeur zéro est un arbre vide utilisable.
type Tree struct {
	root     *node
	segments []Segment
	count    int
	frozen   bool
}

// New retourne un arbre vide.
func New() *Tree {
	return &Tree{}
}

// Insert ajoute id. Réinsérer un ID présent est sans effet.
func (t *Tree) Insert(id uint64) error {
	if t.frozen {
		return ErrFrozen
	}
	switch {
	case t.root == nil:
		t.root = newNode(id)
	case id >= t.root.segment.Lo:
		return t.root.insert(id)
	case adjacent(id, t.root.segment.Lo):
		// Rien n'existe sous la racine: pas de fusion à faire.
		t.root.extendDown(id)
	default:
		t.root = wrap(id, t.root)
	}
	return nil
}

// Contains indique si id a été inséré.
func (t *Tree) Contains(id uint64) bool {
	if t.frozen {
		return Search(t.segments, id)
	}
	return t.root != nil && t.root.contains(id)
}

// UniqueCount retourne le nombre d'IDs distincts insérés.
func (t *Tree) UniqueCount() int {
	if t.frozen {
		return t.count
	}
	if t.root == nil {
		return 0
	}
	return t.root.count()
}

// Range retourne le plus petit et le plus grand ID de l'arbre.
func (t *Tree) Range() (Segment, bool) {
	if t.frozen {
		if len(t.segments) == 0 {
			return Segment{}, false
		}
		return Segment{Lo: t.segments[0].Lo, Hi: t.segments[len(t.segments)-1].Hi}, true
	}
	if t.root == nil {
		return Segment{}, false
	}
	return t.root.subtree, true
}

// Frozen indique si Flatten a déjà été appelé.
func (t *Tree) Frozen() bool {
	return t.frozen
}

// Flatten parcourt l'arbre en préordre, ce qui donne les segments triés par Lo,
// et fige l'arbre. Les appels suivants retournent le résultat mis en cache.
func (t *Tree) Flatten() ([]Segment, int) {
	if t.frozen {
		return t.segments, t.count
	}

	var segments []Segment
	count := 0
	if t.root != nil {
		stack := []*node{t.root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			segments = append(segments, n.segment)
			count += n.segment.Len()
			for i := len(n.children) - 1; i >= 0; i-- {
				stack = append(stack, n.children[i])
			}
		}
	}

	t.segments = segments
	t.count = count
	t.root = nil
	t.frozen = true
	return t.segments, t.count
}

// Validate vérifie les invariants de l'arbre (ou du tableau aplati).
func (t *Tree) Validate() error {
	if !t.frozen {
		if t.root == nil {
			return nil
		}
		return t.root.validate()
	}
	return ValidateSegments(t.segments)
}

// ValidateSegments vérifie que segments est trié, disjoint et sans segments adjacents.
func ValidateSegments(segments []Segment) error {
	for i, s := range segments {
		if s.Lo > s.Hi {
			return fmt.Errorf("%w: inverted segment %s", ErrInvariantViolation, s)
		}
		if i == 0 {
			continue
		}
		prev := segments[i-1]
		if s.Lo <= prev.Hi || adjacent(prev.Hi, s.Lo) {
			return fmt.Errorf("%w: segment %s overlaps or touches %s", ErrInvariantViolation, s, prev)
		}
	}
	return nil
}

// Search cherche id dans un tableau de segments trié par Lo.
func Search(segments []Segment, id uint64) bool {
	i := sort.Search(len(segments), func(i int) bool {
		return segments[i].Lo > id
	}) - 1
	return i >= 0 && segments[i].Contains(id)
}
