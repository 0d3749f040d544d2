package gemini

import "sync"

// keyring is an ordered, non-empty credential list with a cyclic cursor.
// The cursor has its own lock so rotation never contends with session state.
type keyring struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

func newKeyring(keys []string) *keyring {
	return &keyring{keys: keys}
}

// size returns the number of configured credentials.
func (k *keyring) size() int { return len(k.keys) }

// current returns the cursor position and the credential it points at.
func (k *keyring) current() (int, string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cursor, k.keys[k.cursor]
}

// rotate advances the cursor cyclically and reports whether rotation is
// possible. With a single credential the cursor stays put and rotate
// returns false.
func (k *keyring) rotate() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.keys) < 2 {
		return false
	}
	k.cursor = (k.cursor + 1) % len(k.keys)
	return true
}
