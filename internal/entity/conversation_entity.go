package entity

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the thread between one company and one candidate about one job.
type Conversation struct {
	Id            uuid.UUID
	CompanyId     uuid.UUID
	CandidateId   uuid.UUID
	JobId         uuid.UUID
	LastMessageId *uuid.UUID
	LastMessageAt *time.Time
	LastSeq       int64
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

func (c *Conversation) Company() Identity {
	return Identity{UserId: c.CompanyId, Kind: ParticipantCompany}
}

func (c *Conversation) Candidate() Identity {
	return Identity{UserId: c.CandidateId, Kind: ParticipantCandidate}
}

// Participant returns the participant id on the given side.
func (c *Conversation) Participant(kind ParticipantKind) (uuid.UUID, bool) {
	switch kind {
	case ParticipantCompany:
		return c.CompanyId, true
	case ParticipantCandidate:
		return c.CandidateId, true
	default:
		return uuid.Nil, false
	}
}

// HasParticipant reports whether identity is the company or the candidate of c.
// Both the id and the kind must match.
func (c *Conversation) HasParticipant(identity Identity) bool {
	return identity == c.Company() || identity == c.Candidate()
}

// Counterpart returns the participant that is not identity.
func (c *Conversation) Counterpart(identity Identity) (Identity, bool) {
	switch identity {
	case c.Company():
		return c.Candidate(), true
	case c.Candidate():
		return c.Company(), true
	default:
		return Identity{}, false
	}
}
