package implementation_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/repository/contract"
	"hiring-chat-be/internal/repository/implementation"
	"hiring-chat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("DB_CONNECTION_STRING not set")
	}
	db, err := database.NewGormDBFromDSN(dsn, "test")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newConversation() *entity.Conversation {
	return &entity.Conversation{
		Id:          uuid.New(),
		CompanyId:   uuid.New(),
		CandidateId: uuid.New(),
		JobId:       uuid.New(),
		CreatedAt:   time.Now().UTC(),
	}
}

func TestConversationRepository_Postgres(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := openTestDB(t)
	repo := implementation.NewConversationRepository(db)

	conv := newConversation()
	req.NoError(repo.Create(ctx, conv))

	dup := *conv
	dup.Id = uuid.New()
	req.ErrorIs(repo.Create(ctx, &dup), contract.ErrDuplicate)

	found, err := repo.FindByTriple(ctx, conv.CompanyId, conv.CandidateId, conv.JobId)
	req.NoError(err)
	req.Equal(conv.Id, found.Id)

	missing, err := repo.FindByID(ctx, uuid.New())
	req.NoError(err)
	req.Nil(missing)

	// Concurrent increments never hand out the same seq.
	var wg sync.WaitGroup
	seqs := make(chan int64, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := repo.NextSeq(ctx, conv.Id)
			if assert.NoError(t, err) {
				seqs <- seq
			}
		}()
	}
	wg.Wait()
	close(seqs)
	seen := make(map[int64]bool)
	for seq := range seqs {
		req.False(seen[seq], "seq %d handed out twice", seq)
		seen[seq] = true
	}
	req.Len(seen, 20)

	_, err = repo.NextSeq(ctx, uuid.New())
	req.ErrorIs(err, contract.ErrNotFound)
}

func TestMessageRepository_Postgres(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := openTestDB(t)
	conversations := implementation.NewConversationRepository(db)
	messages := implementation.NewMessageRepository(db)

	conv := newConversation()
	req.NoError(conversations.Create(ctx, conv))

	var last *entity.Message
	for i := 0; i < 3; i++ {
		seq, err := conversations.NextSeq(ctx, conv.Id)
		req.NoError(err)
		last = &entity.Message{
			Id:             uuid.New(),
			ConversationId: conv.Id,
			SenderId:       conv.CompanyId,
			SenderKind:     entity.ParticipantCompany,
			Content:        "hello",
			Status:         entity.MessageStatusSent,
			Seq:            seq,
			CreatedAt:      time.Now().UTC(),
		}
		req.NoError(messages.Create(ctx, last))
	}
	req.NoError(conversations.UpdateLastMessage(ctx, conv.Id, last.Id, last.CreatedAt))

	page, err := messages.FindByConversation(ctx, conv.Id, 1, 10)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal(int64(2), page[0].Seq)

	pending, err := messages.FindPendingFor(ctx, conv.Candidate(), 10)
	req.NoError(err)
	req.Len(pending, 3)

	ok, err := messages.CompareAndSetStatus(ctx, last.Id, entity.MessageStatusSent, entity.MessageStatusRead, time.Now().UTC())
	req.NoError(err)
	req.True(ok)
	ok, err = messages.CompareAndSetStatus(ctx, last.Id, entity.MessageStatusSent, entity.MessageStatusDelivered, time.Now().UTC())
	req.NoError(err)
	req.False(ok, "the stored status is no longer sent")

	stored, err := messages.FindByID(ctx, last.Id)
	req.NoError(err)
	req.Equal(entity.MessageStatusRead, stored.Status)
	req.NotNil(stored.DeliveredAt)
	req.NotNil(stored.ReadAt)

	list, err := conversations.FindByParticipant(ctx, conv.Company(), 10, 0)
	req.NoError(err)
	req.Len(list, 1)
	req.Equal(last.Id, *list[0].LastMessageId)
}
