package onboarding

import (
	"context"
	"sort"
	"testing"
	"time"

	"holding-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	flows     map[bson.ObjectID]*models.OnboardingFlow
	steps     map[bson.ObjectID]*models.OnboardingStep
	userFlows map[bson.ObjectID]*models.UserOnboardingFlow
	userSteps map[bson.ObjectID]*models.UserOnboardingStep
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		flows:     map[bson.ObjectID]*models.OnboardingFlow{},
		steps:     map[bson.ObjectID]*models.OnboardingStep{},
		userFlows: map[bson.ObjectID]*models.UserOnboardingFlow{},
		userSteps: map[bson.ObjectID]*models.UserOnboardingStep{},
	}
}

func (s *fakeStore) ActiveFlowByUser(_ context.Context, userID bson.ObjectID) (*models.UserOnboardingFlow, error) {
	for _, uf := range s.userFlows {
		if uf.UserID == userID && !uf.IsCompleted {
			clone := *uf
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) UserFlowByID(_ context.Context, id bson.ObjectID) (*models.UserOnboardingFlow, error) {
	if uf, ok := s.userFlows[id]; ok {
		clone := *uf
		return &clone, nil
	}
	return nil, nil
}

func (s *fakeStore) CompleteUserFlow(_ context.Context, id bson.ObjectID, at time.Time) error {
	uf := s.userFlows[id]
	uf.IsCompleted = true
	uf.CompletedAt = &at
	return nil
}

func (s *fakeStore) UserStepByID(_ context.Context, id bson.ObjectID) (*models.UserOnboardingStep, error) {
	if us, ok := s.userSteps[id]; ok {
		clone := *us
		return &clone, nil
	}
	return nil, nil
}

func (s *fakeStore) UserStepByStep(_ context.Context, userFlowID, stepID bson.ObjectID) (*models.UserOnboardingStep, error) {
	for _, us := range s.userSteps {
		if us.UserFlowID == userFlowID && us.StepID == stepID {
			clone := *us
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) UserStepsByFlow(_ context.Context, userFlowID bson.ObjectID) ([]models.UserOnboardingStep, error) {
	var out []models.UserOnboardingStep
	for _, us := range s.userSteps {
		if us.UserFlowID == userFlowID {
			out = append(out, *us)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveUserStep(_ context.Context, step *models.UserOnboardingStep) error {
	clone := *step
	s.userSteps[step.ID] = &clone
	return nil
}

func (s *fakeStore) FlowByID(_ context.Context, id bson.ObjectID) (*models.OnboardingFlow, error) {
	if f, ok := s.flows[id]; ok {
		clone := *f
		return &clone, nil
	}
	return nil, nil
}

func (s *fakeStore) StepByID(_ context.Context, id bson.ObjectID) (*models.OnboardingStep, error) {
	if st, ok := s.steps[id]; ok {
		clone := *st
		return &clone, nil
	}
	return nil, nil
}

func (s *fakeStore) StepsByFlow(_ context.Context, flowID bson.ObjectID) ([]models.OnboardingStep, error) {
	var out []models.OnboardingStep
	for _, st := range s.steps {
		if st.FlowID == flowID {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

type recordingSubscriber struct {
	events []StepCompletedEvent
}

func (r *recordingSubscriber) HandleStepCompleted(_ context.Context, evt StepCompletedEvent) error {
	r.events = append(r.events, evt)
	return nil
}

// seedFlow builds a two-step flow (personal data + chat) for one user.
func seedFlow(store *fakeStore) (userID bson.ObjectID, chatUserStep, personalUserStep *models.UserOnboardingStep) {
	userID = bson.NewObjectID()
	flow := &models.OnboardingFlow{ID: bson.NewObjectID(), Name: "Cadastro"}
	store.flows[flow.ID] = flow

	personal := &models.OnboardingStep{ID: bson.NewObjectID(), FlowID: flow.ID, Name: "Dados Pessoais", Order: 1, Type: models.StepPersonalData}
	chatStep := &models.OnboardingStep{ID: bson.NewObjectID(), FlowID: flow.ID, Name: "Entrevista", Order: 2, Type: models.StepLLMChat}
	store.steps[personal.ID] = personal
	store.steps[chatStep.ID] = chatStep

	userFlow := &models.UserOnboardingFlow{ID: bson.NewObjectID(), UserID: userID, FlowID: flow.ID, StartedAt: time.Now()}
	store.userFlows[userFlow.ID] = userFlow

	personalUserStep = &models.UserOnboardingStep{ID: bson.NewObjectID(), UserFlowID: userFlow.ID, StepID: personal.ID}
	chatUserStep = &models.UserOnboardingStep{ID: bson.NewObjectID(), UserFlowID: userFlow.ID, StepID: chatStep.ID}
	store.userSteps[personalUserStep.ID] = personalUserStep
	store.userSteps[chatUserStep.ID] = chatUserStep
	return userID, chatUserStep, personalUserStep
}

func TestUpdateStep_DataMergeSetsStartedAt(t *testing.T) {
	store := newFakeStore()
	userID, _, personal := seedFlow(store)
	engine := NewEngine(store)

	updated, err := engine.UpdateStep(context.Background(), userID, personal.ID,
		map[string]any{"nome": "Maria"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Maria", updated.Data["nome"])
	require.NotNil(t, updated.StartedAt)
	assert.Nil(t, updated.CompletedAt)
	assert.False(t, updated.IsCompleted)

	// Second update merges keys, keeping earlier ones.
	updated, err = engine.UpdateStep(context.Background(), userID, personal.ID,
		map[string]any{"cpf": "123"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Maria", updated.Data["nome"])
	assert.Equal(t, "123", updated.Data["cpf"])
}

func TestUpdateStep_CompletionTimestamps(t *testing.T) {
	store := newFakeStore()
	userID, _, personal := seedFlow(store)
	engine := NewEngine(store)

	done := true
	updated, err := engine.UpdateStep(context.Background(), userID, personal.ID, nil, &done)
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)
	require.NotNil(t, updated.CompletedAt)
	require.NotNil(t, updated.StartedAt)

	// Re-opening clears the completion timestamp.
	open := false
	updated, err = engine.UpdateStep(context.Background(), userID, personal.ID, nil, &open)
	require.NoError(t, err)
	assert.False(t, updated.IsCompleted)
	assert.Nil(t, updated.CompletedAt)
}

func TestUpdateStep_ForbiddenForOtherUser(t *testing.T) {
	store := newFakeStore()
	_, _, personal := seedFlow(store)
	engine := NewEngine(store)

	stranger := bson.NewObjectID()
	_, err := engine.UpdateStep(context.Background(), stranger, personal.ID,
		map[string]any{"nome": "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
}

func TestUpdateStep_ChatCompletionNotifiesSubscribers(t *testing.T) {
	store := newFakeStore()
	userID, chatStep, personal := seedFlow(store)
	engine := NewEngine(store)
	sub := &recordingSubscriber{}
	engine.Subscribe(sub)

	done := true
	_, err := engine.UpdateStep(context.Background(), userID, personal.ID, nil, &done)
	require.NoError(t, err)
	assert.Empty(t, sub.events, "personal data completion must not notify")

	_, err = engine.UpdateStep(context.Background(), userID, chatStep.ID, nil, &done)
	require.NoError(t, err)
	require.Len(t, sub.events, 1)
	assert.Equal(t, models.StepLLMChat, sub.events[0].StepType)
	assert.Equal(t, userID, sub.events[0].UserID)
}

func TestUpdateStep_LastStepCompletesFlow(t *testing.T) {
	store := newFakeStore()
	userID, chatStep, personal := seedFlow(store)
	engine := NewEngine(store)

	done := true
	_, err := engine.UpdateStep(context.Background(), userID, personal.ID, nil, &done)
	require.NoError(t, err)

	for _, uf := range store.userFlows {
		assert.False(t, uf.IsCompleted, "flow must stay open with one step pending")
	}

	_, err = engine.UpdateStep(context.Background(), userID, chatStep.ID, nil, &done)
	require.NoError(t, err)

	for _, uf := range store.userFlows {
		assert.True(t, uf.IsCompleted)
		assert.NotNil(t, uf.CompletedAt)
	}
}

func TestActiveFlow_JoinsSteps(t *testing.T) {
	store := newFakeStore()
	userID, _, _ := seedFlow(store)
	engine := NewEngine(store)

	state, err := engine.ActiveFlow(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, state.Steps, 2)
	for _, step := range state.Steps {
		assert.Equal(t, step.Step.ID, step.StepID)
	}
}

func TestActiveFlow_NoneIsNotFound(t *testing.T) {
	engine := NewEngine(newFakeStore())
	_, err := engine.ActiveFlow(context.Background(), bson.NewObjectID())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active onboarding flow")
}
