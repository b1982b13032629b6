// Package store defines the FSMStore interface the core consumes but never
// implements (spec §6): persistence of FSM definitions is an external
// collaborator's concern. pkg/store/filestore provides one concrete,
// file-backed example implementation; neither the tests nor the demo use
// it.
package store

// Document is one stored FSM definition: the raw bytes (YAML or JSON, as
// pkg/fsm's loader understands), an id, and a version stamped by Store —
// $version in spec §6's terms.
type Document struct {
	ID      string
	Version int
	Raw     []byte
}

// Summary is one entry of List()'s result.
type Summary struct {
	ID          string
	Version     int
	Description string
}

// FSMStore is the persistence interface spec §6 names: latestVersion,
// load, store, list (refresh is the separate Refresher interface below).
// The core only ever calls through this interface; it never implements
// persistence itself.
type FSMStore interface {
	// Latest returns the newest version known for id.
	Latest(id string) (Document, error)
	// Load returns the specific version of id, or the latest if version
	// is 0.
	Load(id string, version int) (Document, error)
	// Store persists raw as a new version of id, returning the stored
	// Document with its assigned version.
	Store(id string, raw []byte) (Document, error)
	// List enumerates every known id at its latest version.
	List() ([]Summary, error)
}

// Refresher is implemented by stores that support the refresh operation
// spec §6 describes: "increments the version if and only if the loaded
// document differs from the current (with $version removed for the
// comparison)".
type Refresher interface {
	Refresh(id string, load func() ([]byte, error)) (Document, bool, error)
}
