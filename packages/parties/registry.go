// Package parties maps public keys to the identity principals they belong to. It is the local, in-memory stand-in for
// a network map or certificate directory.
package parties

import (
	"sync"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/identity"
)

// region Registry /////////////////////////////////////////////////////////////////////////////////////////////////////

// Registry holds the locally known identities, keyed by their public key.
type Registry struct {
	identitiesByKey map[ed25519.PublicKey]*identity.Identity

	mutex sync.RWMutex
}

// NewRegistry creates a new Registry that knows the given identities.
func NewRegistry(identities ...*identity.Identity) (registry *Registry) {
	registry = &Registry{
		identitiesByKey: make(map[ed25519.PublicKey]*identity.Identity),
	}
	registry.Register(identities...)

	return
}

// Register adds the given identities to the Registry.
func (r *Registry) Register(identities ...*identity.Identity) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, registeredIdentity := range identities {
		r.identitiesByKey[registeredIdentity.PublicKey()] = registeredIdentity
	}
}

// PartyForKey returns the identity that the given public key belongs to (if it is known).
func (r *Registry) PartyForKey(publicKey ed25519.PublicKey) (party *identity.Identity, exists bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	party, exists = r.identitiesByKey[publicKey]

	return
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
