package processor

import (
	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a content hash of everything a declaration's outcome depends
// on. Positions are deliberately left out: moving a declaration does not
// change its fingerprint.
type Fingerprint uint64

// fingerprint hashes the node's doc and content, its enclosing scope names,
// its package clause name and the imports of its file.
func fingerprint(n *Node) Fingerprint {
	hasher := xxhash.New()
	write := func(s string) {
		_, _ = hasher.WriteString(s)
		// separator, so that ("ab", "c") and ("a", "bc") differ
		_, _ = hasher.Write([]byte{0})
	}
	write(n.Doc)
	write(n.Content)
	for s := n.Scope; s != nil; s = s.Parent {
		write(s.Kind.String())
		write(s.Name)
		write(s.PackageName)
		for _, imp := range s.Imports {
			write(imp.Name)
			write(imp.Path)
		}
	}
	return Fingerprint(hasher.Sum64())
}
