package reconcile

import (
	"sync"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/imamik/vnsync/internal/model"
	"github.com/imamik/vnsync/internal/platform/contrail"
)

// NodeResult is the outcome for one model object.
type NodeResult struct {
	Kind    contrail.Kind `yaml:"kind" json:"kind"`
	UUID    string        `yaml:"uuid" json:"uuid"`
	Name    string        `yaml:"name,omitempty" json:"name,omitempty"`
	State   string        `yaml:"state" json:"state"`
	Skipped bool          `yaml:"skipped,omitempty" json:"skipped,omitempty"`
	// Reason explains a skip.
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`

	err error
}

// Err returns the node's error.
func (n NodeResult) Err() error { return n.err }

// Report collects per-node outcomes of one operation. It is safe for
// concurrent use.
type Report struct {
	Operation string        `yaml:"operation" json:"operation"`
	Duration  time.Duration `yaml:"duration" json:"duration"`
	Orphans   int           `yaml:"orphans,omitempty" json:"orphans,omitempty"`

	mu    sync.Mutex
	nodes []NodeResult
	index map[string]int
	extra []error
}

func newReport(op string) *Report {
	return &Report{Operation: op, index: make(map[string]int)}
}

// Nodes returns a copy of the node results in recording order.
func (r *Report) Nodes() []NodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NodeResult, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Node returns the result for uuid.
func (r *Report) Node(uuid string) (NodeResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[uuid]
	if !ok {
		return NodeResult{}, false
	}
	return r.nodes[i], true
}

// record stores the outcome of an operation on o.
func (r *Report) record(o model.Object, err error) {
	res := NodeResult{Kind: o.Kind(), UUID: o.UUID(), Name: o.Name(), State: o.State().String(), err: err}
	if err != nil {
		res.Error = err.Error()
	}
	r.put(res)
}

// skip records that o was not attempted because of reason.
func (r *Report) skip(o model.Object, reason string) {
	r.put(NodeResult{
		Kind: o.Kind(), UUID: o.UUID(), Name: o.Name(), State: o.State().String(),
		Skipped: true, Reason: reason,
	})
}

// fail records an error not tied to a model object.
func (r *Report) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extra = append(r.extra, err)
}

func (r *Report) put(res NodeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[res.UUID]; ok {
		r.nodes[i] = res
		return
	}
	r.index[res.UUID] = len(r.nodes)
	r.nodes = append(r.nodes, res)
}

// Errors returns every recorded error.
func (r *Report) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, n := range r.nodes {
		if n.err != nil {
			errs = append(errs, n.err)
		}
	}
	return append(errs, r.extra...)
}

// Err aggregates every recorded error, nil when there were none.
func (r *Report) Err() error {
	agg := utilerrors.NewAggregate(r.Errors())
	if agg == nil {
		return nil
	}
	return aggregate{agg}
}

// Summary counts nodes by final state, plus skipped and failed.
func (r *Report) Summary() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for _, n := range r.nodes {
		out[n.State]++
		if n.Skipped {
			out["skipped"]++
		}
		if n.err != nil {
			out["failed"]++
		}
	}
	return out
}

// aggregate exposes the members of an Aggregate to errors.As.
type aggregate struct {
	utilerrors.Aggregate
}

func (a aggregate) Unwrap() []error {
	return a.Errors()
}
