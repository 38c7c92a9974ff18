// ABOUTME: Policy deciding which legacy model txes survive compaction
// ABOUTME: Txes by real users and txes of preserved classes are never deleted

package upgrade

import "github.com/2389/coven-migrate/internal/txlog"

// DefaultPreservedClasses are kept regardless of author
var DefaultPreservedClasses = []string{
	"contact:class:Person",
	"contact:class:PersonAccount",
}

// DefaultInitPreservedClasses are kept when InitModel deletes the model first
var DefaultInitPreservedClasses = []string{
	"contact:class:PersonAccount",
	"contact:class:EmployeeAccount",
}

// PreservePolicy is the allow-list of classes compaction must keep
type PreservePolicy struct {
	classes map[string]bool
}

// NewPreservePolicy builds a policy from class IDs
func NewPreservePolicy(classes ...string) PreservePolicy {
	p := PreservePolicy{classes: make(map[string]bool, len(classes))}
	for _, c := range classes {
		p.classes[c] = true
	}
	return p
}

// Preserves reports whether class is on the allow-list
func (p PreservePolicy) Preserves(class string) bool {
	return p.classes[class]
}

// IsUserTx reports whether tx belongs to a real user or a preserved class
func (p PreservePolicy) IsUserTx(tx txlog.Tx) bool {
	return tx.ModifiedBy != txlog.AccountSystem || p.classes[tx.ObjectClass]
}
