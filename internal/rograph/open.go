package rograph

// Open returns the graph store for path: an in-memory store when path is
// empty, else a persistent one where the build supports it. The schema is
// initialised before Open returns.
func Open(path string) (Store, error) {
	return openStore(path)
}
