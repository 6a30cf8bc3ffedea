package specification

import (
	"hiring-chat-be/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByConversationTriple struct {
	CompanyID   uuid.UUID
	CandidateID uuid.UUID
	JobID       uuid.UUID
}

func (s ByConversationTriple) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("company_id = ? AND candidate_id = ? AND job_id = ?", s.CompanyID, s.CandidateID, s.JobID)
}

// ByParticipant matches conversations where the identity sits on its own side.
type ByParticipant struct {
	Participant entity.Identity
}

func (s ByParticipant) Apply(db *gorm.DB) *gorm.DB {
	if s.Participant.Kind == entity.ParticipantCompany {
		return db.Where("company_id = ?", s.Participant.UserId)
	}
	return db.Where("candidate_id = ?", s.Participant.UserId)
}

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type AfterSeq struct {
	Seq int64
}

func (s AfterSeq) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("seq > ?", s.Seq)
}

type ByStatus struct {
	Status entity.MessageStatus
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_messages.status = ?", string(s.Status))
}

// PendingForRecipient joins the owning conversation and keeps messages written
// by the other side of conversations the recipient belongs to.
type PendingForRecipient struct {
	Recipient entity.Identity
}

func (s PendingForRecipient) Apply(db *gorm.DB) *gorm.DB {
	column := "conversations.candidate_id"
	if s.Recipient.Kind == entity.ParticipantCompany {
		column = "conversations.company_id"
	}
	return db.
		Joins("JOIN conversations ON conversations.id = chat_messages.conversation_id").
		Where(column+" = ?", s.Recipient.UserId).
		Where("chat_messages.sender_kind <> ?", string(s.Recipient.Kind))
}
