package community

import (
	"strconv"
	"strings"

	"github.com/graphweave/graphrag/pkg/common"
)

// Assignment binds a computed member set to a community id.
type Assignment struct {
	ID      int64
	Members []int64
	// Previous is the stored community with the identical member set, or
	// nil when the id is newly allocated.
	Previous *common.Community
}

// Reconcile gives every computed community an id. A community whose member
// set equals a stored community's keeps that id. Every other community gets
// the next id after the largest stored id, so ids are never reused within
// a reconciliation.
func Reconcile(existing []common.Community, computed [][]int64) []Assignment {
	byKey := make(map[string]int, len(existing))
	next := int64(-1)
	for i, c := range existing {
		byKey[membersKey(c.Members)] = i
		next = max(next, c.ID)
	}
	next++

	out := make([]Assignment, 0, len(computed))
	claimed := make(map[int]bool, len(existing))
	for _, members := range computed {
		members = common.NormalizeMembers(members)
		if i, ok := byKey[membersKey(members)]; ok && !claimed[i] {
			claimed[i] = true
			prev := existing[i]
			out = append(out, Assignment{ID: prev.ID, Members: members, Previous: &prev})
			continue
		}
		out = append(out, Assignment{ID: next, Members: members})
		next++
	}
	return out
}

func membersKey(ids []int64) string {
	norm := common.NormalizeMembers(ids)
	parts := make([]string, len(norm))
	for i, id := range norm {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
