package conversation

import (
	"context"
	"sort"
	"time"

	"chat-server/services/chat-api/internal/domain/query"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

// fakeStore backs the in-memory repository fakes. The tx fake snapshots it so
// a failing transaction restores the pre-transaction state.
type fakeStore struct {
	convs      map[uint]*Conversation
	msgs       map[uint]*Message
	nextConvID uint
	nextMsgID  uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		convs:      map[uint]*Conversation{},
		msgs:       map[uint]*Message{},
		nextConvID: 1,
		nextMsgID:  1,
	}
}

func (f *fakeStore) snapshot() *fakeStore {
	cp := newFakeStore()
	cp.nextConvID = f.nextConvID
	cp.nextMsgID = f.nextMsgID
	for id, c := range f.convs {
		cc := *c
		cp.convs[id] = &cc
	}
	for id, m := range f.msgs {
		mc := *m
		cp.msgs[id] = &mc
	}
	return cp
}

func (f *fakeStore) restore(snap *fakeStore) {
	f.convs = snap.convs
	f.msgs = snap.msgs
	f.nextConvID = snap.nextConvID
	f.nextMsgID = snap.nextMsgID
}

func notFound(ctx context.Context, msg string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, msg, nil, "00000000-0000-4000-8000-000000000000")
}

type fakeConvRepo struct {
	store *fakeStore
}

func (f *fakeConvRepo) Create(_ context.Context, conv *Conversation) error {
	conv.ID = f.store.nextConvID
	f.store.nextConvID++
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	cc := *conv
	f.store.convs[conv.ID] = &cc
	return nil
}

func (f *fakeConvRepo) FindByPublicID(ctx context.Context, publicID string) (*Conversation, error) {
	for _, c := range f.store.convs {
		if c.PublicID == publicID {
			cc := *c
			return &cc, nil
		}
	}
	return nil, notFound(ctx, "conversation not found")
}

func (f *fakeConvRepo) FindOwned(ctx context.Context, publicID string, userID uint) (*Conversation, error) {
	for _, c := range f.store.convs {
		if c.PublicID == publicID && c.UserID == userID {
			cc := *c
			return &cc, nil
		}
	}
	return nil, notFound(ctx, "conversation not found")
}

func (f *fakeConvRepo) Update(ctx context.Context, conv *Conversation) error {
	if _, ok := f.store.convs[conv.ID]; !ok {
		return notFound(ctx, "conversation not found")
	}
	cc := *conv
	f.store.convs[conv.ID] = &cc
	return nil
}

func (f *fakeConvRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := f.store.convs[id]; !ok {
		return notFound(ctx, "conversation not found")
	}
	delete(f.store.convs, id)
	return nil
}

func (f *fakeConvRepo) ListByUser(_ context.Context, userID uint, pagination *query.Pagination) ([]*Conversation, error) {
	var out []*Conversation
	for _, c := range f.store.convs {
		if c.UserID != userID {
			continue
		}
		if pagination != nil && pagination.Before != nil && !c.LastActivityAt.Before(*pagination.Before) {
			continue
		}
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.After(out[j].LastActivityAt) })
	if pagination != nil {
		limit := pagination.LimitOrDefault(DefaultConversationPageSize, MaxConversationPageSize)
		if len(out) > limit {
			out = out[:limit]
		}
	}
	return out, nil
}

func (f *fakeConvRepo) CountByUser(_ context.Context, userID uint) (int64, error) {
	var n int64
	for _, c := range f.store.convs {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeConvRepo) IncrementCounters(ctx context.Context, id uint, messageDelta, tokenDelta int64, lastActivity time.Time) error {
	c, ok := f.store.convs[id]
	if !ok {
		return notFound(ctx, "conversation not found")
	}
	c.MessageCount += messageDelta
	c.TotalTokens += tokenDelta
	c.LastActivityAt = lastActivity
	return nil
}

func (f *fakeConvRepo) SetCounters(ctx context.Context, id uint, messageCount, totalTokens int64, lastActivity time.Time) error {
	c, ok := f.store.convs[id]
	if !ok {
		return notFound(ctx, "conversation not found")
	}
	c.MessageCount = messageCount
	c.TotalTokens = totalTokens
	c.LastActivityAt = lastActivity
	return nil
}

func (f *fakeConvRepo) ListActiveSince(_ context.Context, since time.Time, limit int) ([]*Conversation, error) {
	var out []*Conversation
	for _, c := range f.store.convs {
		if c.LastActivityAt.After(since) {
			cc := *c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.After(out[j].LastActivityAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeMsgRepo struct {
	store *fakeStore
	// failCreateBatch forces CreateBatch to fail, for rollback tests.
	failCreateBatch bool
}

func (f *fakeMsgRepo) Create(_ context.Context, msg *Message) error {
	msg.ID = f.store.nextMsgID
	f.store.nextMsgID++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	mc := *msg
	f.store.msgs[msg.ID] = &mc
	return nil
}

func (f *fakeMsgRepo) CreateBatch(ctx context.Context, msgs []*Message) error {
	if f.failCreateBatch {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "insert failed", nil, "00000000-0000-4000-8000-000000000001")
	}
	for _, m := range msgs {
		if err := f.Create(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeMsgRepo) FindByPublicID(ctx context.Context, conversationID uint, publicID string) (*Message, error) {
	for _, m := range f.store.msgs {
		if m.ConversationID == conversationID && m.PublicID == publicID && m.DeletedAt == nil {
			mc := *m
			return &mc, nil
		}
	}
	return nil, notFound(ctx, "message not found")
}

func (f *fakeMsgRepo) ListByConversation(_ context.Context, conversationID uint, pagination *query.Pagination) ([]*Message, error) {
	var out []*Message
	for _, m := range f.store.msgs {
		if m.ConversationID != conversationID || m.DeletedAt != nil {
			continue
		}
		if pagination != nil && pagination.Before != nil && !m.CreatedAt.Before(*pagination.Before) {
			continue
		}
		mc := *m
		out = append(out, &mc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if pagination != nil {
		limit := pagination.LimitOrDefault(DefaultMessagePageSize, MaxMessagePageSize)
		if len(out) > limit {
			out = out[:limit]
		}
	}
	return out, nil
}

func (f *fakeMsgRepo) ListIncludingDeleted(_ context.Context, conversationID uint) ([]*Message, error) {
	var out []*Message
	for _, m := range f.store.msgs {
		if m.ConversationID == conversationID {
			mc := *m
			out = append(out, &mc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeMsgRepo) CountLive(_ context.Context, conversationID uint) (int64, error) {
	var n int64
	for _, m := range f.store.msgs {
		if m.ConversationID == conversationID && m.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeMsgRepo) SumLiveTokens(_ context.Context, conversationID uint) (int64, error) {
	var n int64
	for _, m := range f.store.msgs {
		if m.ConversationID == conversationID && m.DeletedAt == nil {
			n += int64(m.TokenCount)
		}
	}
	return n, nil
}

func (f *fakeMsgRepo) Update(ctx context.Context, msg *Message) error {
	if _, ok := f.store.msgs[msg.ID]; !ok {
		return notFound(ctx, "message not found")
	}
	mc := *msg
	f.store.msgs[msg.ID] = &mc
	return nil
}

func (f *fakeMsgRepo) SoftDelete(ctx context.Context, id uint) error {
	m, ok := f.store.msgs[id]
	if !ok {
		return notFound(ctx, "message not found")
	}
	now := time.Now().UTC()
	m.DeletedAt = &now
	return nil
}

func (f *fakeMsgRepo) HardDeleteByConversation(_ context.Context, conversationID uint) error {
	for id, m := range f.store.msgs {
		if m.ConversationID == conversationID {
			delete(f.store.msgs, id)
		}
	}
	return nil
}

func (f *fakeMsgRepo) Stats(_ context.Context, conversationID uint) (*MessageStats, error) {
	stats := &MessageStats{}
	for _, m := range f.store.msgs {
		if m.ConversationID != conversationID || m.DeletedAt != nil {
			continue
		}
		stats.MessageCount++
		stats.TotalTokens += int64(m.TokenCount)
		created := m.CreatedAt
		if stats.FirstMessageAt == nil || created.Before(*stats.FirstMessageAt) {
			stats.FirstMessageAt = &created
		}
		if stats.LastMessageAt == nil || created.After(*stats.LastMessageAt) {
			stats.LastMessageAt = &created
		}
	}
	return stats, nil
}

// fakeTx restores the store when fn fails, mimicking a rollback.
type fakeTx struct {
	store *fakeStore
}

func (f *fakeTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := f.store.snapshot()
	if err := fn(ctx); err != nil {
		f.store.restore(snap)
		return err
	}
	return nil
}

// testEnv bundles the fakes wired the way the services expect them.
type testEnv struct {
	store    *fakeStore
	convRepo *fakeConvRepo
	msgRepo  *fakeMsgRepo
	tx       *fakeTx
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	return &testEnv{
		store:    store,
		convRepo: &fakeConvRepo{store: store},
		msgRepo:  &fakeMsgRepo{store: store},
		tx:       &fakeTx{store: store},
	}
}

func (e *testEnv) conversation(userID uint, publicID string) *Conversation {
	conv := NewConversation(publicID, userID, "principal-1", "Test Conversation", ModelSettings{})
	_ = e.convRepo.Create(context.Background(), conv)
	return conv
}
