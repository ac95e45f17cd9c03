package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"chat-server/services/chat-api/internal/domain/query"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

func TestCreateConversationGeneratesID(t *testing.T) {
	env := newTestEnv()
	svc := NewService(env.convRepo)

	conv, err := svc.CreateConversation(context.Background(), CreateConversationInput{
		UserID:      1,
		PrincipalID: "principal-1",
		Title:       "Hello world",
	})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if !strings.HasPrefix(conv.PublicID, "conv_") {
		t.Errorf("expected conv_ prefixed ID, got %q", conv.PublicID)
	}
	if conv.Status != StatusActive {
		t.Errorf("expected active status, got %q", conv.Status)
	}
}

func TestCreateConversationAcceptsCallerID(t *testing.T) {
	env := newTestEnv()
	svc := NewService(env.convRepo)

	conv, err := svc.CreateConversation(context.Background(), CreateConversationInput{
		PublicID:    "conv_abc123def456",
		UserID:      1,
		PrincipalID: "principal-1",
		Title:       "Pre-created",
	})
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if conv.PublicID != "conv_abc123def456" {
		t.Errorf("caller-supplied ID not kept: %q", conv.PublicID)
	}
}

func TestCreateConversationRejectsBadInput(t *testing.T) {
	env := newTestEnv()
	svc := NewService(env.convRepo)
	ctx := context.Background()

	if _, err := svc.CreateConversation(ctx, CreateConversationInput{UserID: 1, Title: ""}); !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Errorf("empty title: expected validation error, got %v", err)
	}
	if _, err := svc.CreateConversation(ctx, CreateConversationInput{UserID: 1, Title: "ok", PublicID: "msg_wrongprefix1"}); !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Errorf("bad ID prefix: expected validation error, got %v", err)
	}

	badTemp := 3.5
	if _, err := svc.CreateConversation(ctx, CreateConversationInput{UserID: 1, Title: "ok", Settings: ModelSettings{Temperature: &badTemp}}); !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Errorf("temperature out of range: expected validation error, got %v", err)
	}
}

func TestTitleTruncationBoundary(t *testing.T) {
	exact := strings.Repeat("a", MaxTitleLength)
	if got := DeriveTitle(exact); got != exact {
		t.Errorf("title of exactly %d chars must stay untouched, got %q", MaxTitleLength, got)
	}

	over := strings.Repeat("a", MaxTitleLength+1)
	got := DeriveTitle(over)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated title must end with ellipsis, got %q", got)
	}
	if len(got) > MaxTitleLength+3 {
		t.Errorf("truncated title too long: %d chars", len(got))
	}
}

func TestOwnershipHidden(t *testing.T) {
	env := newTestEnv()
	svc := NewService(env.convRepo)
	env.conversation(1, "conv_owned1234567890")

	_, err := svc.GetOwnedConversation(context.Background(), "conv_owned1234567890", 2)
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		t.Errorf("foreign conversation must report not-found, got %v", err)
	}
}

func TestListConversationsPaginationNoOverlap(t *testing.T) {
	env := newTestEnv()
	svc := NewService(env.convRepo)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	ids := []string{"conv_aaaaaaaaaaaa1", "conv_aaaaaaaaaaaa2", "conv_aaaaaaaaaaaa3", "conv_aaaaaaaaaaaa4", "conv_aaaaaaaaaaaa5"}
	for i, id := range ids {
		conv := env.conversation(1, id)
		env.store.convs[conv.ID].LastActivityAt = base.Add(time.Duration(i) * time.Minute)
	}

	limit := 2
	seen := map[string]bool{}
	var before *time.Time
	var prev time.Time

	for page := 0; page < 4; page++ {
		convs, total, err := svc.ListConversations(ctx, 1, &query.Pagination{Limit: &limit, Before: before})
		if err != nil {
			t.Fatalf("ListConversations() error = %v", err)
		}
		if total != int64(len(ids)) {
			t.Fatalf("total = %d, want %d", total, len(ids))
		}
		if len(convs) == 0 {
			break
		}
		for _, c := range convs {
			if seen[c.PublicID] {
				t.Fatalf("conversation %s returned twice", c.PublicID)
			}
			seen[c.PublicID] = true
			if !prev.IsZero() && c.LastActivityAt.After(prev) {
				t.Fatalf("ordering violated: %v after %v", c.LastActivityAt, prev)
			}
			prev = c.LastActivityAt
		}
		last := convs[len(convs)-1].LastActivityAt
		before = &last
	}

	if len(seen) != len(ids) {
		t.Errorf("pagination covered %d of %d conversations", len(seen), len(ids))
	}
}

func TestRecordActivityMissingConversation(t *testing.T) {
	env := newTestEnv()
	svc := NewService(env.convRepo)

	err := svc.RecordActivity(context.Background(), 999, 1, 10)
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		t.Errorf("expected not-found for missing conversation, got %v", err)
	}
}

func TestUpdateConversationTitle(t *testing.T) {
	env := newTestEnv()
	svc := NewService(env.convRepo)
	env.conversation(1, "conv_update12345678")

	title := "Renamed thread"
	conv, err := svc.UpdateConversation(context.Background(), "conv_update12345678", 1, UpdateConversationInput{Title: &title})
	if err != nil {
		t.Fatalf("UpdateConversation() error = %v", err)
	}
	if conv.Title != "Renamed thread" {
		t.Errorf("title = %q, want %q", conv.Title, "Renamed thread")
	}
}
