package model

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a blake2b-256 digest of the identity and rolled state of an
// instance. Two stored rows with the same fingerprint are duplicates of one item.
//
// The instance id is part of the digest: the unique index catches one
// instance persisted twice. Equal rolls under another id are another item.
type Fingerprint [blake2b.Size256]byte

// String returns the hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// FingerprintOf computes the fingerprint of it, socketed items included.
// Stack count is excluded: splitting and stacking change it legitimately.
func FingerprintOf(it *ItemInstance) Fingerprint {
	buf := appendFingerprint(nil, it)
	return blake2b.Sum256(buf)
}

func appendFingerprint(buf []byte, it *ItemInstance) []byte {
	buf = append(buf, it.ID[:]...)
	buf = appendString(buf, it.Definition.String())
	buf = binary.BigEndian.AppendUint32(buf, uint32(it.Seed))
	buf = binary.BigEndian.AppendUint32(buf, uint32(it.ItemLevel))
	buf = binary.BigEndian.AppendUint32(buf, uint32(it.AffixLevel))
	buf = appendString(buf, it.QualityType.String())

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(it.Affixes)))
	for _, a := range it.Affixes {
		buf = appendString(buf, a.Definition.String())
		if a.Predefined {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(it.Sockets)))
	for i := range it.Sockets {
		s := &it.Sockets[i]
		buf = append(buf, s.ID[:]...)
		buf = appendString(buf, s.Definition.String())
		if s.Empty || s.Item == nil {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		buf = appendFingerprint(buf, s.Item)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}
