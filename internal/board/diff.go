package board

import "sort"

// ComputeDiff turns a batch of validated actions into a normalized diff.
// Bucket order follows arrival order, so later patches for the same id win
// field by field when the diff is applied.
func ComputeDiff(actions []StateAction) Diff {
	var diff Diff
	for _, action := range actions {
		switch action.Op {
		case OpAdd:
			diff.Add = appendBucket(diff.Add, action.Data)
		case OpPatch:
			diff.Edit = appendBucket(diff.Edit, Node{
				ID:      action.Data.ID,
				Type:    action.Data.Type,
				Content: action.Data.Content,
			})
		case OpRemove:
			diff.Remove = appendBucket(diff.Remove, Node{
				ID:   action.Data.ID,
				Type: action.Data.Type,
			})
		}
	}
	return diff
}

func appendBucket(bucket map[string][]Node, node Node) map[string][]Node {
	if bucket == nil {
		bucket = make(map[string][]Node)
	}
	bucket[node.Type] = append(bucket[node.Type], node)
	return bucket
}

// ApplyDiff applies a diff to a state snapshot and returns the next
// snapshot. Verb order is set, add, edit, remove. The input slice and every
// node it holds are left untouched; nodes the diff does not mention are
// carried over as-is.
func ApplyDiff(diff Diff, state []Node) []Node {
	var next []Node

	if len(diff.Set) > 0 {
		next = flattenSet(diff.Set)
	} else {
		next = append([]Node(nil), state...)
	}

	for _, nodes := range sortedBuckets(diff.Add) {
		for _, node := range nodes {
			if findNode(next, node.ID) >= 0 {
				continue
			}
			next = append(next, node)
		}
	}

	for _, nodes := range sortedBuckets(diff.Edit) {
		for _, patch := range nodes {
			index := findNode(next, patch.ID)
			if index < 0 || next[index].Type != patch.Type {
				continue
			}
			merged := next[index]
			merged.Content = cloneContent(merged.Content)
			for key, value := range patch.Content {
				merged.Content[key] = value
			}
			next[index] = merged
		}
	}

	for _, nodes := range sortedBuckets(diff.Remove) {
		for _, target := range nodes {
			index := findNode(next, target.ID)
			if index < 0 || next[index].Type != target.Type {
				continue
			}
			next = append(next[:index:index], next[index+1:]...)
		}
	}

	return next
}

// flattenSet rebuilds the whole state from a set diff. Type buckets are
// walked in sorted order so the result is deterministic.
func flattenSet(set map[string][]Node) []Node {
	var next []Node
	for _, nodes := range sortedBuckets(set) {
		next = append(next, nodes...)
	}
	return next
}

// SnapshotDiff builds the set-only diff a joining client receives.
func SnapshotDiff(state []Node) Diff {
	set := make(map[string][]Node)
	for _, node := range state {
		set[node.Type] = append(set[node.Type], node)
	}
	return Diff{Set: set}
}

func sortedBuckets(bucket map[string][]Node) [][]Node {
	if len(bucket) == 0 {
		return nil
	}
	types := make([]string, 0, len(bucket))
	for nodeType := range bucket {
		types = append(types, nodeType)
	}
	sort.Strings(types)
	ordered := make([][]Node, 0, len(types))
	for _, nodeType := range types {
		ordered = append(ordered, bucket[nodeType])
	}
	return ordered
}

func findNode(state []Node, id string) int {
	for i := range state {
		if state[i].ID == id {
			return i
		}
	}
	return -1
}
