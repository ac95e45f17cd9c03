package conversation

import (
	"context"
	"testing"

	"chat-server/services/chat-api/internal/domain/tokenizer"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

func newReplaceService(env *testEnv) *ReplaceService {
	return NewReplaceService(env.msgRepo, env.convRepo, env.tx, tokenizer.NewHeuristicEstimator())
}

func TestReplaceMessagesOrderAndCounters(t *testing.T) {
	env := newTestEnv()
	msgSvc := newMessageService(env)
	svc := newReplaceService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_replace1234567")

	// existing history to be wiped
	if _, err := msgSvc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleUser, Content: "old question"}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	if _, err := msgSvc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleAssistant, Content: "old answer"}); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	items := []ReplaceItem{
		{Role: RoleSystem, Content: "you are helpful"},
		{Role: RoleUser, Content: "new question"},
		{Role: RoleAssistant, Content: "new answer"},
	}

	count, err := svc.ReplaceMessages(ctx, conv.PublicID, 1, items)
	if err != nil {
		t.Fatalf("ReplaceMessages() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	// old rows are gone for good, not soft-deleted
	all, err := msgSvc.GetMessagesIncludingDeleted(ctx, conv)
	if err != nil {
		t.Fatalf("GetMessagesIncludingDeleted() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows after replace, got %d", len(all))
	}

	// retrieval order equals input order via synthetic timestamps
	page, err := msgSvc.GetMessages(ctx, conv, nil)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	wantContents := []string{"you are helpful", "new question", "new answer"}
	if len(page.Messages) != len(wantContents) {
		t.Fatalf("page size = %d, want %d", len(page.Messages), len(wantContents))
	}
	for i, m := range page.Messages {
		if m.Content != wantContents[i] {
			t.Errorf("position %d: content %q, want %q", i, m.Content, wantContents[i])
		}
	}

	stored := env.store.convs[conv.ID]
	if stored.MessageCount != 3 {
		t.Errorf("message count = %d, want 3", stored.MessageCount)
	}
	assertCountersMatchLiveMessages(t, env, conv.ID)
}

func TestReplaceMessagesRollsBackOnFailure(t *testing.T) {
	env := newTestEnv()
	msgSvc := newMessageService(env)
	svc := newReplaceService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_rollback123456")

	if _, err := msgSvc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleUser, Content: "survives rollback"}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	countBefore := env.store.convs[conv.ID].MessageCount
	tokensBefore := env.store.convs[conv.ID].TotalTokens

	env.msgRepo.failCreateBatch = true
	_, err := svc.ReplaceMessages(ctx, conv.PublicID, 1, []ReplaceItem{
		{Role: RoleUser, Content: "never lands"},
	})
	if err == nil {
		t.Fatal("expected error from failing insert")
	}

	stored := env.store.convs[conv.ID]
	if stored.MessageCount != countBefore || stored.TotalTokens != tokensBefore {
		t.Errorf("counters changed despite rollback: count=%d tokens=%d", stored.MessageCount, stored.TotalTokens)
	}
	live, _ := env.msgRepo.CountLive(ctx, conv.ID)
	if live != 1 {
		t.Errorf("existing messages lost despite rollback: %d live", live)
	}
}

func TestReplaceMessagesEmptyList(t *testing.T) {
	env := newTestEnv()
	msgSvc := newMessageService(env)
	svc := newReplaceService(env)
	ctx := context.Background()
	conv := env.conversation(1, "conv_replempty12345")

	if _, err := msgSvc.CreateMessage(ctx, conv, CreateMessageInput{Role: RoleUser, Content: "about to vanish"}); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	count, err := svc.ReplaceMessages(ctx, conv.PublicID, 1, nil)
	if err != nil {
		t.Fatalf("ReplaceMessages() error = %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}

	stored := env.store.convs[conv.ID]
	if stored.MessageCount != 0 || stored.TotalTokens != 0 {
		t.Errorf("counters not zeroed: count=%d tokens=%d", stored.MessageCount, stored.TotalTokens)
	}
}

func TestReplaceMessagesOwnershipHidden(t *testing.T) {
	env := newTestEnv()
	svc := newReplaceService(env)
	env.conversation(1, "conv_replown1234567")

	_, err := svc.ReplaceMessages(context.Background(), "conv_replown1234567", 2, []ReplaceItem{
		{Role: RoleUser, Content: "intruder"},
	})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		t.Errorf("foreign conversation must report not-found, got %v", err)
	}
}

func TestReplaceMessagesRejectsInvalidItem(t *testing.T) {
	env := newTestEnv()
	svc := newReplaceService(env)
	env.conversation(1, "conv_replbad1234567")

	_, err := svc.ReplaceMessages(context.Background(), "conv_replbad1234567", 1, []ReplaceItem{
		{Role: RoleUser, Content: "fine"},
		{Role: Role("other"), Content: "broken"},
	})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
