// Package state implements the wizard StateRepository on memory, SQL
// (sqlite / libsql) and redis. States are stored as CBOR blobs; backend
// tokens are sealed with AES-GCM when an encryption key is configured.
package state

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/security"
)

const blobVersion = 1

var ErrUnsupportedBlob = errors.New("unsupported state blob version")

// blob is the stored form of a State.
type blob struct {
	Version int           `cbor:"0,keyasint"`
	State   *wizard.State `cbor:"1,keyasint"`
	Sealed  string        `cbor:"2,keyasint,omitempty"`
}

// Codec converts states to and from stored blobs.
type Codec struct {
	key string
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCodec returns a codec. An empty key stores tokens unsealed.
func NewCodec(encryptionKey string) (*Codec, error) {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	enc, err := opts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build CBOR encoder: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build CBOR decoder: %w", err)
	}
	return &Codec{key: encryptionKey, enc: enc, dec: dec}, nil
}

// Encode serializes s.
func (c *Codec) Encode(s *wizard.State) ([]byte, error) {
	b := blob{Version: blobVersion, State: s}
	if c.key != "" && !s.Tokens.Empty() {
		raw, err := c.enc.Marshal(s.Tokens)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tokens: %w", err)
		}
		sealed, err := security.Encrypt(string(raw), c.key)
		if err != nil {
			return nil, fmt.Errorf("failed to seal tokens: %w", err)
		}
		stripped := *s
		stripped.Tokens = nil
		b.State = &stripped
		b.Sealed = sealed
	}
	return c.enc.Marshal(b)
}

// Decode deserializes a blob written by Encode.
func (c *Codec) Decode(data []byte) (*wizard.State, error) {
	var b blob
	if err := c.dec.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if b.Version != blobVersion || b.State == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBlob, b.Version)
	}
	if b.Sealed != "" && c.key != "" {
		raw, err := security.Decrypt(b.Sealed, c.key)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal tokens: %w", err)
		}
		var tokens wizard.Tokens
		if err := c.dec.Unmarshal([]byte(raw), &tokens); err != nil {
			return nil, fmt.Errorf("failed to decode tokens: %w", err)
		}
		b.State.Tokens = &tokens
	}
	if b.State.CompletedSteps == nil {
		b.State.CompletedSteps = []wizard.Step{}
	}
	return b.State, nil
}
