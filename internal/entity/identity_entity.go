package entity

import (
	"fmt"

	"github.com/google/uuid"
)

type ParticipantKind string

const (
	ParticipantCompany   ParticipantKind = "company"
	ParticipantCandidate ParticipantKind = "candidate"
)

func (k ParticipantKind) Valid() bool {
	return k == ParticipantCompany || k == ParticipantCandidate
}

func ParseParticipantKind(s string) (ParticipantKind, error) {
	k := ParticipantKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown participant kind %q", s)
	}
	return k, nil
}

// Identity is the participant reference attached to a connection by the auth layer.
type Identity struct {
	UserId uuid.UUID
	Kind   ParticipantKind
}

// IsZero reports whether no usable identity is attached.
func (i Identity) IsZero() bool {
	return i.UserId == uuid.Nil || !i.Kind.Valid()
}

// Key is the registry key, e.g. "company:6f1c...".
func (i Identity) Key() string {
	return string(i.Kind) + ":" + i.UserId.String()
}

func (i Identity) String() string {
	return i.Key()
}
