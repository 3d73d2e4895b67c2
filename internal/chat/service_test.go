package chat

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"holding-backend/internal/apperr"
	"holding-backend/internal/llm"
	"holding-backend/internal/models"
	"holding-backend/internal/onboarding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// --- fakes ---

type fakeFlowStore struct {
	flows     map[bson.ObjectID]*models.OnboardingFlow
	steps     map[bson.ObjectID]*models.OnboardingStep
	userFlows map[bson.ObjectID]*models.UserOnboardingFlow
	userSteps map[bson.ObjectID]*models.UserOnboardingStep
}

func newFakeFlowStore() *fakeFlowStore {
	return &fakeFlowStore{
		flows:     map[bson.ObjectID]*models.OnboardingFlow{},
		steps:     map[bson.ObjectID]*models.OnboardingStep{},
		userFlows: map[bson.ObjectID]*models.UserOnboardingFlow{},
		userSteps: map[bson.ObjectID]*models.UserOnboardingStep{},
	}
}

func (s *fakeFlowStore) ActiveFlowByUser(_ context.Context, userID bson.ObjectID) (*models.UserOnboardingFlow, error) {
	for _, uf := range s.userFlows {
		if uf.UserID == userID && !uf.IsCompleted {
			clone := *uf
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeFlowStore) UserFlowByID(_ context.Context, id bson.ObjectID) (*models.UserOnboardingFlow, error) {
	if uf, ok := s.userFlows[id]; ok {
		clone := *uf
		return &clone, nil
	}
	return nil, nil
}

func (s *fakeFlowStore) CompleteUserFlow(_ context.Context, id bson.ObjectID, at time.Time) error {
	uf := s.userFlows[id]
	uf.IsCompleted = true
	uf.CompletedAt = &at
	return nil
}

func (s *fakeFlowStore) UserStepByID(_ context.Context, id bson.ObjectID) (*models.UserOnboardingStep, error) {
	if us, ok := s.userSteps[id]; ok {
		clone := *us
		return &clone, nil
	}
	return nil, nil
}

func (s *fakeFlowStore) UserStepByStep(_ context.Context, userFlowID, stepID bson.ObjectID) (*models.UserOnboardingStep, error) {
	for _, us := range s.userSteps {
		if us.UserFlowID == userFlowID && us.StepID == stepID {
			clone := *us
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeFlowStore) UserStepsByFlow(_ context.Context, userFlowID bson.ObjectID) ([]models.UserOnboardingStep, error) {
	var out []models.UserOnboardingStep
	for _, us := range s.userSteps {
		if us.UserFlowID == userFlowID {
			out = append(out, *us)
		}
	}
	return out, nil
}

func (s *fakeFlowStore) SaveUserStep(_ context.Context, step *models.UserOnboardingStep) error {
	clone := *step
	s.userSteps[step.ID] = &clone
	return nil
}

func (s *fakeFlowStore) FlowByID(_ context.Context, id bson.ObjectID) (*models.OnboardingFlow, error) {
	if f, ok := s.flows[id]; ok {
		clone := *f
		return &clone, nil
	}
	return nil, nil
}

func (s *fakeFlowStore) StepByID(_ context.Context, id bson.ObjectID) (*models.OnboardingStep, error) {
	if st, ok := s.steps[id]; ok {
		clone := *st
		return &clone, nil
	}
	return nil, nil
}

func (s *fakeFlowStore) StepsByFlow(_ context.Context, flowID bson.ObjectID) ([]models.OnboardingStep, error) {
	var out []models.OnboardingStep
	for _, st := range s.steps {
		if st.FlowID == flowID {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

type fakeChatStore struct {
	conversations map[bson.ObjectID]*models.Conversation
	messages      []models.Message
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{conversations: map[bson.ObjectID]*models.Conversation{}}
}

func (s *fakeChatStore) FindByUserAndStep(_ context.Context, userID, stepID bson.ObjectID) (*models.Conversation, error) {
	for _, c := range s.conversations {
		if c.UserID == userID && c.StepID == stepID {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeChatStore) Create(_ context.Context, conversation *models.Conversation) error {
	conversation.ID = bson.NewObjectID()
	conversation.CreatedAt = time.Now()
	clone := *conversation
	s.conversations[conversation.ID] = &clone
	return nil
}

func (s *fakeChatStore) CreateMessage(_ context.Context, message *models.Message) error {
	message.ID = bson.NewObjectID()
	message.CreatedAt = time.Now()
	s.messages = append(s.messages, *message)
	return nil
}

func (s *fakeChatStore) LastMessages(_ context.Context, conversationID bson.ObjectID, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeChatStore) MessagesPage(_ context.Context, conversationID bson.ObjectID, limit, offset int) ([]models.Message, error) {
	var all []models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			all = append(all, m)
		}
	}
	// Page from the end, like the Mongo query.
	end := len(all) - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return all[start:end], nil
}

func (s *fakeChatStore) CountMessages(_ context.Context, conversationID bson.ObjectID) (int64, error) {
	var n int64
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n, nil
}

func (s *fakeChatStore) DeleteMessages(_ context.Context, conversationID bson.ObjectID) error {
	var kept []models.Message
	for _, m := range s.messages {
		if m.ConversationID != conversationID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

type fakeLocker struct {
	held map[string]bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (l *fakeLocker) key(userID, stepID bson.ObjectID) string {
	return userID.Hex() + "/" + stepID.Hex()
}

func (l *fakeLocker) Acquire(_ context.Context, userID, stepID bson.ObjectID) error {
	k := l.key(userID, stepID)
	if l.held[k] {
		return apperr.InvalidState("another chat request for this step is in progress")
	}
	l.held[k] = true
	return nil
}

func (l *fakeLocker) Release(_ context.Context, userID, stepID bson.ObjectID) error {
	delete(l.held, l.key(userID, stepID))
	return nil
}

func passthroughTxn(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- harness ---

type harness struct {
	service  *Service
	store    *fakeFlowStore
	chats    *fakeChatStore
	locker   *fakeLocker
	mock     *llm.Mock
	user     *models.User
	stepID   bson.ObjectID
	userStep *models.UserOnboardingStep
}

func newHarness(t *testing.T, rounds ...llm.MockRound) *harness {
	t.Helper()

	store := newFakeFlowStore()
	userID := bson.NewObjectID()

	flow := &models.OnboardingFlow{ID: bson.NewObjectID(), Name: "Cadastro"}
	store.flows[flow.ID] = flow
	personal := &models.OnboardingStep{ID: bson.NewObjectID(), FlowID: flow.ID, Name: "Dados Pessoais", Order: 1, Type: models.StepPersonalData}
	chatStep := &models.OnboardingStep{ID: bson.NewObjectID(), FlowID: flow.ID, Name: "Entrevista", Order: 2, Type: models.StepLLMChat}
	store.steps[personal.ID] = personal
	store.steps[chatStep.ID] = chatStep

	userFlow := &models.UserOnboardingFlow{ID: bson.NewObjectID(), UserID: userID, FlowID: flow.ID, StartedAt: time.Now()}
	store.userFlows[userFlow.ID] = userFlow

	now := time.Now()
	personalUserStep := &models.UserOnboardingStep{
		ID: bson.NewObjectID(), UserFlowID: userFlow.ID, StepID: personal.ID,
		IsCompleted: true, StartedAt: &now, CompletedAt: &now,
	}
	store.userSteps[personalUserStep.ID] = personalUserStep
	chatUserStep := &models.UserOnboardingStep{ID: bson.NewObjectID(), UserFlowID: userFlow.ID, StepID: chatStep.ID}
	store.userSteps[chatUserStep.ID] = chatUserStep

	chats := newFakeChatStore()
	locker := newFakeLocker()
	mock := &llm.Mock{Rounds: rounds}
	engine := onboarding.NewEngine(store)
	limiter := NewRateLimiter(newFakeLimitStore(), 10, time.Minute)

	service := NewService(chats, locker, store, engine, limiter, mock, true, passthroughTxn)

	return &harness{
		service:  service,
		store:    store,
		chats:    chats,
		locker:   locker,
		mock:     mock,
		user:     &models.User{ID: userID, Email: "cliente@example.com"},
		stepID:   chatStep.ID,
		userStep: chatUserStep,
	}
}

func collectChunks(t *testing.T, h *harness, content string) []StreamChunk {
	t.Helper()
	var chunks []StreamChunk
	err := h.service.ProcessMessage(context.Background(), h.user, h.stepID, content, func(c StreamChunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	return chunks
}

func chunkTypes(chunks []StreamChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Type)
	}
	return out
}

// --- tests ---

func TestProcessMessage_PlainReply(t *testing.T) {
	h := newHarness(t, llm.MockRound{Text: "Olá! Vamos começar?"})

	chunks := collectChunks(t, h, "oi")

	// Every successful turn carries the snapshot, even when no tool ran.
	assert.Equal(t, []string{"message", "structured_data", "progress", "complete"}, chunkTypes(chunks))
	assert.Equal(t, "Olá! Vamos começar?", chunks[len(chunks)-1].Content)

	// User and assistant messages persisted in order.
	require.Len(t, h.chats.messages, 2)
	assert.Equal(t, models.SenderUser, h.chats.messages[0].SenderType)
	assert.Equal(t, "oi", h.chats.messages[0].Content)
	assert.Equal(t, models.SenderLLM, h.chats.messages[1].SenderType)
}

func TestProcessMessage_ToolCallPersistsStructuredData(t *testing.T) {
	h := newHarness(t,
		llm.MockRound{ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      "adicionar_imovel",
			Arguments: `{"tipo":"casa","localizacao":"Santos","status":"próprio"}`,
		}}},
		llm.MockRound{Text: "Adicionei sua casa em Santos."},
	)

	chunks := collectChunks(t, h, "tenho uma casa em Santos")
	types := chunkTypes(chunks)
	assert.Contains(t, types, "structured_data")
	assert.Equal(t, "complete", types[len(types)-1])

	// Snapshot landed on the user step through the engine.
	saved := h.store.userSteps[h.userStep.ID]
	require.NotNil(t, saved.Data)
	sd, err := models.StructuredDataFromStep(saved)
	require.NoError(t, err)
	require.Len(t, sd.Imoveis, 1)
	assert.Equal(t, "Santos", sd.Imoveis[0].Localizacao)

	// Progress chunk reflects the new section.
	for _, c := range chunks {
		if c.Type == "progress" {
			progress, ok := c.Data.(models.ChatProgress)
			require.True(t, ok)
			assert.Equal(t, 1, progress.CompletedSections)
		}
	}

	// Second round saw the tool result.
	require.Len(t, h.mock.Requests, 2)
	second := h.mock.Requests[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Contains(t, last.Content, "Imóvel adicionado")
}

func TestProcessMessage_ModelFailureClosesGracefully(t *testing.T) {
	h := newHarness(t, llm.MockRound{Err: errors.New("upstream timeout")})

	chunks := collectChunks(t, h, "oi")

	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.Equal(t, "complete", last.Type)
	assert.Contains(t, last.Content, "Desculpe")
	assert.Contains(t, last.Content, "upstream timeout", "terminal chunk carries the cause")

	// The apology is persisted so history stays coherent.
	require.Len(t, h.chats.messages, 2)
	assert.Contains(t, h.chats.messages[1].Content, "upstream timeout")
}

func TestProcessMessage_ConsultantForbidden(t *testing.T) {
	h := newHarness(t, llm.MockRound{Text: "x"})
	consultant := &models.User{ID: bson.NewObjectID(), IsConsultant: true}

	err := h.service.ProcessMessage(context.Background(), consultant, h.stepID, "oi", func(StreamChunk) error { return nil })
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestProcessMessage_RequiresCompletedPersonalData(t *testing.T) {
	h := newHarness(t, llm.MockRound{Text: "x"})
	// Re-open the personal data step.
	for _, us := range h.store.userSteps {
		if us.ID != h.userStep.ID {
			us.IsCompleted = false
		}
	}

	err := h.service.ProcessMessage(context.Background(), h.user, h.stepID, "oi", func(StreamChunk) error { return nil })
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}

func TestProcessMessage_NonChatStepRejected(t *testing.T) {
	h := newHarness(t, llm.MockRound{Text: "x"})

	var personalStepID bson.ObjectID
	for _, st := range h.store.steps {
		if st.Type == models.StepPersonalData {
			personalStepID = st.ID
		}
	}
	err := h.service.ProcessMessage(context.Background(), h.user, personalStepID, "oi", func(StreamChunk) error { return nil })
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}

func TestProcessMessage_DisabledChat(t *testing.T) {
	h := newHarness(t)
	h.service.enabled = false

	err := h.service.ProcessMessage(context.Background(), h.user, h.stepID, "oi", func(StreamChunk) error { return nil })
	assert.True(t, errors.Is(err, apperr.ErrUpstream))
}

func TestProcessMessage_StepLockHeld(t *testing.T) {
	h := newHarness(t, llm.MockRound{Text: "x"})
	require.NoError(t, h.locker.Acquire(context.Background(), h.user.ID, h.stepID))

	err := h.service.ProcessMessage(context.Background(), h.user, h.stepID, "oi", func(StreamChunk) error { return nil })
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}

func TestProcessMessage_LockReleasedAfterTurn(t *testing.T) {
	h := newHarness(t, llm.MockRound{Text: "primeira"}, llm.MockRound{Text: "segunda"})

	collectChunks(t, h, "oi")
	collectChunks(t, h, "oi de novo")

	assert.Empty(t, h.locker.held)
}

func TestReset_WipesConversationAndData(t *testing.T) {
	h := newHarness(t,
		llm.MockRound{ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      "adicionar_investimento",
			Arguments: `{"tipo":"CDB","valor":"10000"}`,
		}}},
		llm.MockRound{Text: "Registrado."},
	)
	collectChunks(t, h, "tenho um CDB")
	require.NotEmpty(t, h.chats.messages)

	require.NoError(t, h.service.Reset(context.Background(), h.user, h.stepID))

	assert.Empty(t, h.chats.messages)
	saved := h.store.userSteps[h.userStep.ID]
	assert.NotContains(t, saved.Data, models.StructuredDataKey)
	assert.False(t, saved.IsCompleted)
	assert.Nil(t, saved.CompletedAt)
}

func TestMessages_Pagination(t *testing.T) {
	h := newHarness(t, llm.MockRound{Text: "resposta"})
	collectChunks(t, h, "pergunta")

	result, err := h.service.Messages(context.Background(), h.user, h.stepID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "pergunta", result.Messages[0].Content)
}

func TestState_ReportsChatAvailability(t *testing.T) {
	h := newHarness(t)

	view, err := h.service.State(context.Background(), h.user, h.stepID)
	require.NoError(t, err)
	assert.True(t, view.ChatEnabled)
	assert.Equal(t, int64(0), view.MessageCount)
	assert.Equal(t, 0, view.Progress.CompletedSections)
}
