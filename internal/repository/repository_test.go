package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cybertrace-ops/internal/database"
	"cybertrace-ops/internal/model"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	return db
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()

	u := &model.User{ID: "u-1", Email: "ops@example.com", Name: "ops", PasswordHash: "x", Status: model.UserStatusActive}
	require.NoError(t, repo.Create(ctx, u))

	exists, err := repo.ExistsByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := repo.GetByEmail(ctx, "missing@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	name := "NetOps"
	require.NoError(t, repo.UpdateProfile(ctx, "u-1", &name, nil))
	require.NoError(t, repo.UpdateProfile(ctx, "u-1", nil, nil))
	require.NoError(t, repo.UpdatePasswordHash(ctx, "u-1", "y"))
	got, err = repo.GetByID(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "NetOps", got.Name)
	assert.Nil(t, got.Image)
	assert.Equal(t, "y", got.PasswordHash)
}

func TestMessageRepository_CreateIsIdempotent(t *testing.T) {
	db := setupDB(t)
	chats := NewChatRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	require.NoError(t, chats.Create(ctx, &model.Chat{ID: "c-1", UserID: "u-1", Title: "New Chat"}))

	msg := &model.Message{
		ID: "m-1", ChatID: "c-1", Role: model.MessageRoleUser, Content: "first",
		Parts: datatypes.JSONSlice[model.Part]{model.TextPart("first")},
	}
	created, err := messages.Create(ctx, msg)
	require.NoError(t, err)
	assert.True(t, created)

	dup := *msg
	dup.Content = "changed"
	created, err = messages.Create(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)

	list, err := messages.GetByChatID(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Content)
	require.Len(t, list[0].Parts, 1)
	assert.Equal(t, model.PartTypeText, list[0].Parts[0].Type)
}

func TestMessageRepository_FirstUserMessage(t *testing.T) {
	db := setupDB(t)
	chats := NewChatRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()
	require.NoError(t, chats.Create(ctx, &model.Chat{ID: "c-1", UserID: "u-1", Title: "New Chat"}))

	first, err := messages.GetFirstUserMessage(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, first)

	base := time.Now()
	for i, m := range []model.Message{
		{ID: "m-1", Role: model.MessageRoleAssistant, Content: "welcome"},
		{ID: "m-2", Role: model.MessageRoleUser, Content: "show bgp"},
		{ID: "m-3", Role: model.MessageRoleUser, Content: "show ospf"},
	} {
		m.ChatID = "c-1"
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		_, err := messages.Create(ctx, &m)
		require.NoError(t, err)
	}

	first, err = messages.GetFirstUserMessage(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "show bgp", first.Content)
}

func TestChatRepository(t *testing.T) {
	db := setupDB(t)
	chats := NewChatRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	base := time.Now()
	for i, c := range []model.Chat{
		{ID: "c-1", UserID: "u-1", Title: "New Chat"},
		{ID: "c-2", UserID: "u-1", Title: "BGP audit"},
		{ID: "c-3", UserID: "u-1", Title: "  "},
		{ID: "c-4", UserID: "u-2", Title: "chat"},
	} {
		c.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, chats.Create(ctx, &c))
	}

	list, err := chats.ListByUserID(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c-3", list[0].ID)

	generic, err := chats.ListByTitles(ctx, []string{"New Chat", "chat"})
	require.NoError(t, err)
	var ids []string
	for _, c := range generic {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"c-1", "c-3", "c-4"}, ids)

	require.NoError(t, chats.UpdateTitle(ctx, "c-1", "Leaf flaps"))
	got, err := chats.GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Leaf flaps", got.Title)

	for i, id := range []string{"m-2", "m-1"} {
		_, err := messages.Create(ctx, &model.Message{
			ID: id, ChatID: "c-1", Role: model.MessageRoleUser, Content: id,
			CreatedAt: base.Add(time.Duration(-i) * time.Second),
		})
		require.NoError(t, err)
	}
	withMessages, err := chats.GetByIDWithMessages(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, withMessages.Messages, 2)
	assert.Equal(t, "m-1", withMessages.Messages[0].ID)

	require.NoError(t, chats.Delete(ctx, "c-1"))
	got, err = chats.GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	remaining, err := messages.GetByChatID(ctx, "c-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
