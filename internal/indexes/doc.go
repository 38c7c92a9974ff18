// Package indexes creates the secondary indexes of every data domain known to
// the class hierarchy. The set of indexes requested for a domain depends on
// its estimated size.
package indexes
