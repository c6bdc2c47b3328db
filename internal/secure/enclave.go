package secure

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// MaxPayloadBytes bounds what NewPayloadBuffer will enclave. It mirrors
// sopstool.Driver.Decrypt's decrypted-output cap (spec.md §4.2/§6, "Output
// buffer bound >= 10 MiB"); sopstool defines its own MaxOutputBytes in
// terms of this constant so the two bounds cannot drift apart.
const MaxPayloadBytes = 16 * 1024 * 1024

// PayloadBuffer holds decrypted secrets-payload bytes inside a
// memguard.Enclave: encrypted at rest in process memory, mlocked against
// swap, bounded by guard pages. sopstool.Driver.Decrypt is the only
// caller, for the window between subprocess capture and JSON decoding.
type PayloadBuffer struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy() calls and blocks use after
	// destroy.
	destroyed bool
}

// NewPayloadBuffer copies payload into a protected enclave; memguard wipes
// the caller's slice once it has been copied. payload larger than
// MaxPayloadBytes is rejected rather than enclaved, since sopstool checks
// the same bound on raw stdout before this is ever called — a payload
// past it here means a caller bypassed that check.
func NewPayloadBuffer(payload []byte) (*PayloadBuffer, error) {
	if len(payload) > MaxPayloadBytes {
		return nil, fmt.Errorf("decrypted payload of %d bytes exceeds %d byte limit", len(payload), MaxPayloadBytes)
	}
	return &PayloadBuffer{enclave: memguard.NewEnclave(payload)}, nil
}

// Open decrypts the enclave into a locked buffer holding the plaintext
// payload. The caller must Destroy() the returned buffer once the JSON
// decode using it is done.
func (b *PayloadBuffer) Open() (*memguard.LockedBuffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return b.enclave.Open()
}

// Destroy is idempotent. After Destroy, Open returns an empty buffer.
func (b *PayloadBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}
