package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"slices"

	"github.com/imamik/vnsync/internal/platform/contrail"
)

// DiffKind is the kind of write needed to converge an object.
type DiffKind int

// Diff kinds.
const (
	DiffNone DiffKind = iota
	DiffCreate
	DiffPatch
	DiffReplace
)

func (k DiffKind) String() string {
	switch k {
	case DiffNone:
		return "none"
	case DiffCreate:
		return "create"
	case DiffPatch:
		return "patch"
	case DiffReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// DiffResult describes the write that converges observed to desired.
type DiffResult struct {
	Kind DiffKind
	// Attrs holds the changed attributes of a patch.
	Attrs map[string]string
}

// Diff compares the controller's observed object with the desired one.
// Fingerprints are compared first; on mismatch, a change to FQName, refs or
// labels needs a full replace while attribute-only changes are patched.
// Attributes present only on the observed object are ignored.
func Diff(observed, desired *contrail.Object) DiffResult {
	if observed == nil {
		return DiffResult{Kind: DiffCreate}
	}
	if Fingerprint(observed) == Fingerprint(desired) {
		return DiffResult{Kind: DiffNone}
	}

	if !slices.Equal(observed.FQName, desired.FQName) ||
		!refsEqual(observed.Refs, desired.Refs) ||
		!maps.Equal(observed.Labels, desired.Labels) {
		return DiffResult{Kind: DiffReplace}
	}

	changed := make(map[string]string)
	for k, v := range desired.Attrs {
		if cur, ok := observed.Attrs[k]; !ok || cur != v {
			changed[k] = v
		}
	}
	if len(changed) == 0 {
		return DiffResult{Kind: DiffNone}
	}
	return DiffResult{Kind: DiffPatch, Attrs: changed}
}

// Fingerprint returns a content hash over the canonical JSON encoding of the
// object. Map keys are sorted by encoding/json and refs are sorted first.
func Fingerprint(obj *contrail.Object) string {
	if obj == nil {
		return ""
	}
	c := obj.DeepCopy()
	contrail.SortRefs(c.Refs)
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func refsEqual(a, b []contrail.Ref) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = slices.Clone(a), slices.Clone(b)
	contrail.SortRefs(a)
	contrail.SortRefs(b)
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].UUID != b[i].UUID || !slices.Equal(a[i].FQName, b[i].FQName) {
			return false
		}
	}
	return true
}
