package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"etender/models"

	"github.com/fxamacker/cbor/v2"
)

// GenesisHash is the prev hash of the first entry.
var GenesisHash = func() string {
	sum := sha256.Sum256([]byte("etender/audit/genesis/v1"))
	return "0x" + hex.EncodeToString(sum[:])
}()

// preimage is encoded as a CBOR array in core deterministic mode, so the
// bytes depend only on the field values.
type preimage struct {
	_          struct{} `cbor:",toarray"`
	PrevHash   string
	Seq        int64
	Action     string
	EntityKind string
	EntityID   string
	UserID     string
	Timestamp  string
	Payload    []byte
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("audit: cbor enc mode: %v", err))
	}
	return em
}()

// EntryHash recomputes the integrity hash of e from its stored fields,
// chained to e.PrevHash.
func EntryHash(e models.AuditEntry) (string, error) {
	data, err := encMode.Marshal(preimage{
		PrevHash:   e.PrevHash,
		Seq:        e.Seq,
		Action:     string(e.Action),
		EntityKind: string(e.EntityKind),
		EntityID:   e.EntityID,
		UserID:     e.UserID,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		Payload:    []byte(e.Payload),
	})
	if err != nil {
		return "", fmt.Errorf("encode audit preimage: %w", err)
	}
	sum := sha256.Sum256(data)
	return "0x" + hex.EncodeToString(sum[:]), nil
}
