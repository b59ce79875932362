package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/repository"
)

func TestConversationServiceListGroups(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	convs := newMemConversations()
	ctx := context.Background()
	for id, at := range map[string]time.Time{
		"today": now.Add(-time.Hour),
		"week":  now.Add(-3 * 24 * time.Hour),
		"month": now.Add(-20 * 24 * time.Hour),
		"old":   now.Add(-90 * 24 * time.Hour),
	} {
		require.NoError(t, convs.Create(ctx, &model.Conversation{ID: id, Title: id, CreatedAt: at}))
	}

	svc := NewConversationService(convs, &memMessages{}, nil).(*conversationService)
	svc.now = func() time.Time { return now }

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, list.Total)
	require.Equal(t, "today", list.Conversations[0].ID)
	require.Equal(t, "old", list.Conversations[3].ID)
	require.Len(t, list.Groups.Today, 1)
	require.Len(t, list.Groups.Last7Days, 1)
	require.Len(t, list.Groups.Last30Days, 1)
	require.Len(t, list.Groups.Older, 1)
}

func TestConversationServiceGetAndDelete(t *testing.T) {
	convs := newMemConversations()
	ctx := context.Background()
	require.NoError(t, convs.Create(ctx, &model.Conversation{ID: "c1", Title: "t"}))
	svc := NewConversationService(convs, &memMessages{}, nil)

	detail, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, detail.Turns)

	require.NoError(t, svc.Delete(ctx, "c1"))
	_, err = svc.Get(ctx, "c1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "c1"), repository.ErrNotFound)
}

func TestConversationServiceExport(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	convs := newMemConversations()
	msgs := &memMessages{}
	ctx := context.Background()
	require.NoError(t, convs.Create(ctx, &model.Conversation{ID: "c1", Title: "t"}))
	require.NoError(t, msgs.Create(ctx, &model.Turn{ConversationID: "c1", Role: model.RoleUser, Content: "q"}))

	exports := &memExports{objects: map[string][]byte{}}
	svc := NewConversationService(convs, msgs, exports).(*conversationService)
	svc.now = func() time.Time { return now }

	url, err := svc.Export(ctx, "c1")
	require.NoError(t, err)

	objectName := "exports/c1/1741618800.json"
	require.True(t, strings.HasPrefix(url, "https://minio.local/"+objectName))
	require.Contains(t, url, "24h0m0s")

	var exported ConversationExport
	require.NoError(t, json.Unmarshal(exports.objects[objectName], &exported))
	require.Equal(t, "c1", exported.Conversation.ID)
	require.Len(t, exported.Turns, 1)
	require.True(t, now.Equal(exported.ExportedAt))

	_, err = svc.Export(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
