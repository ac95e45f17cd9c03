package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"chat-server/services/chat-api/internal/domain/query"
	"chat-server/services/chat-api/internal/domain/tokenizer"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

func newMessageService(env *testEnv) *MessageService {
	return NewMessageService(env.msgRepo, env.convRepo, env.tx, tokenizer.NewHeuristicEstimator())
}

// assertCountersMatchLiveMessages checks the core consistency invariant: the
// stored counters always equal the aggregates over live message rows.
func assertCountersMatchLiveMessages(t *testing.T, env *testEnv, convID uint) {
	t.Helper()
	ctx := context.Background()

	conv := env.store.convs[convID]
	liveCount, _ := env.msgRepo.CountLive(ctx, convID)
	liveTokens, _ := env.msgRepo.SumLiveTokens(ctx, convID)

	if conv.MessageCount != liveCount {
		t.Errorf("message count %d does not match live messages %d", conv.MessageCount, liveCount)
	}
	if conv.TotalTokens != liveTokens {
		t.Errorf("token total %d does not match live token sum %d", conv.TotalTokens, liveTokens)
	}
}

func TestCreateMessageUpdatesCounters(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_counters123456")

	msg1, err := svc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleUser, Content: "hello there"})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if !strings.HasPrefix(msg1.PublicID, "msg_") {
		t.Errorf("expected msg_ prefixed ID, got %q", msg1.PublicID)
	}

	if _, err := svc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleAssistant, Content: "hi, how can I help?"}); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	stored := env.store.convs[conv.ID]
	if stored.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", stored.MessageCount)
	}
	assertCountersMatchLiveMessages(t, env, conv.ID)
}

func TestCreateMessageContentBounds(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_bounds12345678")

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "max length accepted", content: strings.Repeat("x", MaxContentLength), wantErr: false},
		{name: "over max rejected", content: strings.Repeat("x", MaxContentLength+1), wantErr: true},
		{name: "empty rejected", content: "", wantErr: true},
		{name: "whitespace only rejected", content: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleUser, Content: tt.content})
			if tt.wantErr && !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	assertCountersMatchLiveMessages(t, env, conv.ID)
}

func TestCreateMessageRejectsUnknownRole(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	conv := env.conversation(1, "conv_role1234567890")

	_, err := svc.CreateMessage(context.Background(), conv, CreateMessageInput{Role: Role("moderator"), Content: "hi"})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}
}

func TestCreateMessagePrefersAuthoritativeTokenCount(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	conv := env.conversation(1, "conv_authtokens1234")

	count := 42
	msg, err := svc.CreateMessage(context.Background(), conv, CreateMessageInput{
		Role:       RoleAssistant,
		Content:    "short",
		Completion: &CompletionMetadata{Model: "gpt-4o", TokenCount: &count},
	})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if msg.TokenCount != 42 {
		t.Errorf("token count = %d, want authoritative 42", msg.TokenCount)
	}
	assertCountersMatchLiveMessages(t, env, conv.ID)
}

func TestUpdateMessageAppliesSignedDelta(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_update12345678")

	msg, err := svc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleUser, Content: "abcd"})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	// grow: 4 chars (1 token) -> 12 chars (3 tokens)
	updated, err := svc.UpdateMessage(ctx, conv, msg.PublicID, "abcdabcdabcd", nil)
	if err != nil {
		t.Fatalf("UpdateMessage() error = %v", err)
	}
	if !updated.Edited {
		t.Error("edited flag not set")
	}
	if updated.TokenCount != 3 {
		t.Errorf("token count = %d, want 3", updated.TokenCount)
	}

	stored := env.store.convs[conv.ID]
	if stored.MessageCount != 1 {
		t.Errorf("message count changed on edit: %d", stored.MessageCount)
	}
	assertCountersMatchLiveMessages(t, env, conv.ID)

	// shrink: delta goes negative
	if _, err := svc.UpdateMessage(ctx, conv, msg.PublicID, "ab", nil); err != nil {
		t.Fatalf("UpdateMessage() shrink error = %v", err)
	}
	assertCountersMatchLiveMessages(t, env, conv.ID)
}

func TestUpdateMessageRejectsOversizeContent(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_oversize123456")

	msg, _ := svc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleUser, Content: "fine"})

	_, err := svc.UpdateMessage(ctx, conv, msg.PublicID, strings.Repeat("y", MaxContentLength+1), nil)
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDeleteMessageDecrementsCounters(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_delete12345678")

	msg, err := svc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleUser, Content: "to be removed"})
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	if err := svc.DeleteMessage(ctx, conv, msg.PublicID); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}

	stored := env.store.convs[conv.ID]
	if stored.MessageCount != 0 || stored.TotalTokens != 0 {
		t.Errorf("counters not decremented: count=%d tokens=%d", stored.MessageCount, stored.TotalTokens)
	}
	assertCountersMatchLiveMessages(t, env, conv.ID)

	// soft delete keeps the row, hidden from live listings
	page, err := svc.GetMessages(ctx, conv, nil)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(page.Messages) != 0 {
		t.Errorf("soft-deleted message still listed")
	}
	all, err := svc.GetMessagesIncludingDeleted(ctx, conv)
	if err != nil {
		t.Fatalf("GetMessagesIncludingDeleted() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("soft-deleted row missing from unscoped listing: %d rows", len(all))
	}
}

func TestGetMessagesPaginationNoOverlap(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_paging12345678")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := &Message{
			PublicID:       "msg_page000000000" + string(rune('a'+i)),
			ConversationID: conv.ID,
			Role:           RoleUser,
			Content:        "message",
			TokenCount:     2,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := env.msgRepo.Create(ctx, msg); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	limit := 2
	seen := map[string]bool{}
	pagination := &query.Pagination{Limit: &limit}

	for page := 0; page < 4; page++ {
		result, err := svc.GetMessages(ctx, conv, pagination)
		if err != nil {
			t.Fatalf("GetMessages() error = %v", err)
		}
		if result.TotalCount != 5 {
			t.Fatalf("total = %d, want 5", result.TotalCount)
		}
		for i := 1; i < len(result.Messages); i++ {
			if result.Messages[i].CreatedAt.Before(result.Messages[i-1].CreatedAt) {
				t.Fatalf("page not in ascending order")
			}
		}
		for _, m := range result.Messages {
			if seen[m.PublicID] {
				t.Fatalf("message %s returned twice", m.PublicID)
			}
			seen[m.PublicID] = true
		}
		if result.NextCursor == nil {
			if len(result.Messages) == limit && len(seen) < 5 {
				t.Fatalf("full page without next cursor before exhaustion")
			}
			break
		}
		before, err := query.DecodeCursor(*result.NextCursor)
		if err != nil {
			t.Fatalf("DecodeCursor() error = %v", err)
		}
		pagination = &query.Pagination{Limit: &limit, Before: &before}
	}

	if len(seen) != 5 {
		t.Errorf("pagination covered %d of 5 messages", len(seen))
	}
}

func TestBulkCreateMessagesGroupsDeltas(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	ctx := context.Background()
	convA := env.conversation(1, "conv_bulka12345678")
	convB := env.conversation(1, "conv_bulkb12345678")
	env.conversation(2, "conv_foreign1234567")

	items := []BulkItem{
		{ConversationPublicID: convA.PublicID, Input: CreateMessageInput{Role: RoleUser, Content: "first in A"}},
		{ConversationPublicID: convA.PublicID, Input: CreateMessageInput{Role: RoleAssistant, Content: "second in A"}},
		{ConversationPublicID: convB.PublicID, Input: CreateMessageInput{Role: RoleUser, Content: "only one in B"}},
		{ConversationPublicID: convB.PublicID, Input: CreateMessageInput{Role: Role("bogus"), Content: "bad role"}},
		{ConversationPublicID: convA.PublicID, Input: CreateMessageInput{Role: RoleUser, Content: ""}},
		{ConversationPublicID: "conv_foreign1234567", Input: CreateMessageInput{Role: RoleUser, Content: "not mine"}},
	}

	result, err := svc.BulkCreateMessages(ctx, 1, items)
	if err != nil {
		t.Fatalf("BulkCreateMessages() error = %v", err)
	}
	if result.Created != 3 {
		t.Errorf("created = %d, want 3", result.Created)
	}
	if result.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", result.Skipped)
	}

	if env.store.convs[convA.ID].MessageCount != 2 {
		t.Errorf("conversation A count = %d, want 2", env.store.convs[convA.ID].MessageCount)
	}
	if env.store.convs[convB.ID].MessageCount != 1 {
		t.Errorf("conversation B count = %d, want 1", env.store.convs[convB.ID].MessageCount)
	}
	assertCountersMatchLiveMessages(t, env, convA.ID)
	assertCountersMatchLiveMessages(t, env, convB.ID)
}

func TestGetMessageStats(t *testing.T) {
	env := newTestEnv()
	svc := newMessageService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_stats12345678")

	first, _ := svc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleUser, Content: "aaaa"})
	second, _ := svc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleAssistant, Content: "bbbbbbbb"})
	_ = second

	stats, err := svc.GetMessageStats(ctx, conv)
	if err != nil {
		t.Fatalf("GetMessageStats() error = %v", err)
	}
	if stats.MessageCount != 2 {
		t.Errorf("stats count = %d, want 2", stats.MessageCount)
	}
	if stats.TotalTokens != 3 {
		t.Errorf("stats tokens = %d, want 3", stats.TotalTokens)
	}
	if stats.FirstMessageAt == nil || stats.LastMessageAt == nil {
		t.Fatal("stats timestamps missing")
	}
	if stats.FirstMessageAt.After(*stats.LastMessageAt) {
		t.Errorf("first %v after last %v", stats.FirstMessageAt, stats.LastMessageAt)
	}

	// deleting a message is reflected in the aggregates
	if err := svc.DeleteMessage(ctx, conv, first.PublicID); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	stats, err = svc.GetMessageStats(ctx, conv)
	if err != nil {
		t.Fatalf("GetMessageStats() error = %v", err)
	}
	if stats.MessageCount != 1 || stats.TotalTokens != 2 {
		t.Errorf("stats after delete = %d/%d, want 1/2", stats.MessageCount, stats.TotalTokens)
	}
}
