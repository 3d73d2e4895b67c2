package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"holding-backend/internal/apperr"
	"holding-backend/internal/llm"
	"holding-backend/internal/models"
	"holding-backend/internal/onboarding"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// historyWindow caps how much conversation context goes to the model.
const historyWindow = 30

// maxToolRounds bounds the tool-call loop within a single turn.
const maxToolRounds = 5

// ChatStore persists conversations and messages. Satisfied by
// repository.ConversationRepo.
type ChatStore interface {
	FindByUserAndStep(ctx context.Context, userID, stepID bson.ObjectID) (*models.Conversation, error)
	Create(ctx context.Context, conversation *models.Conversation) error
	CreateMessage(ctx context.Context, message *models.Message) error
	LastMessages(ctx context.Context, conversationID bson.ObjectID, limit int) ([]models.Message, error)
	MessagesPage(ctx context.Context, conversationID bson.ObjectID, limit, offset int) ([]models.Message, error)
	CountMessages(ctx context.Context, conversationID bson.ObjectID) (int64, error)
	DeleteMessages(ctx context.Context, conversationID bson.ObjectID) error
}

// StepLocker serializes chat turns per (user, step). Satisfied by
// repository.StepLockRepo.
type StepLocker interface {
	Acquire(ctx context.Context, userID, stepID bson.ObjectID) error
	Release(ctx context.Context, userID, stepID bson.ObjectID) error
}

// StreamChunk is one server-sent event in a chat stream.
type StreamChunk struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Service orchestrates assisted-interview turns: validates the step,
// streams the model reply, applies tool calls to the structured-data
// snapshot and persists the result through the onboarding engine.
type Service struct {
	conversations ChatStore
	locks         StepLocker
	flows         onboarding.Store
	engine        *onboarding.Engine
	limiter       *RateLimiter
	client        llm.Client
	enabled       bool
	txn           onboarding.Txn
}

func NewService(conversations ChatStore, locks StepLocker, flows onboarding.Store, engine *onboarding.Engine, limiter *RateLimiter, client llm.Client, enabled bool, txn onboarding.Txn) *Service {
	return &Service{
		conversations: conversations,
		locks:         locks,
		flows:         flows,
		engine:        engine,
		limiter:       limiter,
		client:        client,
		enabled:       enabled,
		txn:           txn,
	}
}

// validatedStep checks every precondition for touching a chat step and
// returns the step state when all pass.
func (s *Service) validatedStep(ctx context.Context, user *models.User, stepID bson.ObjectID) (*onboarding.StepState, error) {
	if user.IsConsultant {
		return nil, apperr.Forbidden("consultores não participam do chat de onboarding")
	}
	flow, err := s.engine.ActiveFlow(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if flow.IsCompleted {
		return nil, apperr.InvalidState("onboarding já concluído")
	}

	var target *onboarding.StepState
	for i := range flow.Steps {
		step := &flow.Steps[i]
		if step.Step.ID == stepID {
			target = step
			break
		}
		// Earlier form steps gate access to the interview.
		if step.Step.Type == models.StepPersonalData && !step.IsCompleted {
			return nil, apperr.InvalidState("conclua a etapa %q antes de iniciar o chat", step.Step.Name)
		}
	}
	if target == nil {
		return nil, apperr.NotFound("step not found in user's onboarding flow")
	}
	if target.Step.Type != models.StepLLMChat {
		return nil, apperr.InvalidState("esta etapa não suporta chat")
	}
	return target, nil
}

func (s *Service) conversation(ctx context.Context, userID, stepID bson.ObjectID) (*models.Conversation, error) {
	conversation, err := s.conversations.FindByUserAndStep(ctx, userID, stepID)
	if err != nil {
		return nil, err
	}
	if conversation != nil {
		return conversation, nil
	}
	conversation = &models.Conversation{
		UserID: userID,
		StepID: stepID,
		Title:  "Entrevista Assistida",
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func historyToLLM(history []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		switch m.SenderType {
		case models.SenderUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case models.SenderLLM:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		case models.SenderSystem:
			out = append(out, llm.Message{Role: llm.RoleSystem, Content: m.Content})
		}
		// Consultant annotations stay out of the model context.
	}
	return out
}

// ProcessMessage runs one chat turn, sending chunks through send as
// they become available. Model failures are reported in-band as a
// complete chunk so the client does not lose the conversation.
func (s *Service) ProcessMessage(ctx context.Context, user *models.User, stepID bson.ObjectID, content string, send func(StreamChunk) error) error {
	if !s.enabled || s.client == nil {
		return apperr.Upstream("chat indisponível: integração com o modelo não configurada")
	}
	state, err := s.validatedStep(ctx, user, stepID)
	if err != nil {
		return err
	}
	if err := s.limiter.Allow(ctx, user.ID.Hex()); err != nil {
		return err
	}

	if err := s.locks.Acquire(ctx, user.ID, stepID); err != nil {
		return err
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), user.ID, stepID); err != nil {
			log.Printf("⚠️ failed to release chat lock for user %s: %v", user.ID.Hex(), err)
		}
	}()

	conversation, err := s.conversation(ctx, user.ID, stepID)
	if err != nil {
		return err
	}
	history, err := s.conversations.LastMessages(ctx, conversation.ID, historyWindow)
	if err != nil {
		return err
	}
	if err := s.conversations.CreateMessage(ctx, &models.Message{
		ConversationID: conversation.ID,
		SenderID:       &user.ID,
		SenderType:     models.SenderUser,
		Content:        content,
	}); err != nil {
		return err
	}

	sd, err := models.StructuredDataFromStep(&state.UserOnboardingStep)
	if err != nil {
		return err
	}

	messages := append(historyToLLM(history), llm.Message{Role: llm.RoleUser, Content: content})
	tools := toolDefs()

	var fullText string
	for round := 0; ; round++ {
		req := llm.Request{System: systemPrompt, Messages: messages}
		if round < maxToolRounds {
			req.Tools = tools
		}
		result, err := s.client.StreamCompletion(ctx, req, func(delta string) error {
			fullText += delta
			return send(StreamChunk{Type: "message", Content: delta})
		})
		if err != nil {
			return s.failTurn(ctx, conversation, send, err)
		}
		if len(result.ToolCalls) == 0 {
			break
		}
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    runToolCall(sd, call),
				ToolCallID: call.ID,
			})
		}
	}

	if err := s.conversations.CreateMessage(ctx, &models.Message{
		ConversationID: conversation.ID,
		SenderType:     models.SenderLLM,
		Content:        fullText,
	}); err != nil {
		return err
	}

	sdMap, err := sd.AsStepData()
	if err != nil {
		return err
	}
	data := map[string]any{
		models.StructuredDataKey: sdMap,
		"last_updated":           time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.engine.UpdateStep(ctx, user.ID, state.UserOnboardingStep.ID, data, nil); err != nil {
		return err
	}
	if err := send(StreamChunk{Type: "structured_data", Data: sd}); err != nil {
		return err
	}
	if err := send(StreamChunk{Type: "progress", Data: sd.Progress()}); err != nil {
		return err
	}
	return send(StreamChunk{Type: "complete", Content: fullText})
}

// failTurn records the model failure in the conversation and closes the
// stream gracefully, carrying the cause so the client can surface it.
func (s *Service) failTurn(ctx context.Context, conversation *models.Conversation, send func(StreamChunk) error, cause error) error {
	log.Printf("❌ LLM turn failed for conversation %s: %v", conversation.ID.Hex(), cause)
	content := fmt.Sprintf("Desculpe, ocorreu um erro ao processar sua mensagem: %v", cause)
	if err := s.conversations.CreateMessage(ctx, &models.Message{
		ConversationID: conversation.ID,
		SenderType:     models.SenderLLM,
		Content:        content,
	}); err != nil {
		return err
	}
	return send(StreamChunk{Type: "complete", Content: content})
}

// StepView is the chat-facing view of an interview step.
type StepView struct {
	Step           onboarding.StepState   `json:"step"`
	ChatEnabled    bool                   `json:"chat_enabled"`
	StructuredData *models.StructuredData `json:"structured_data"`
	Progress       models.ChatProgress    `json:"progress"`
	MessageCount   int64                  `json:"message_count"`
}

// State returns the current interview state for the step.
func (s *Service) State(ctx context.Context, user *models.User, stepID bson.ObjectID) (*StepView, error) {
	state, err := s.validatedStep(ctx, user, stepID)
	if err != nil {
		return nil, err
	}
	sd, err := models.StructuredDataFromStep(&state.UserOnboardingStep)
	if err != nil {
		return nil, err
	}
	view := &StepView{
		Step:           *state,
		ChatEnabled:    s.enabled && s.client != nil,
		StructuredData: sd,
		Progress:       sd.Progress(),
	}
	conversation, err := s.conversations.FindByUserAndStep(ctx, user.ID, stepID)
	if err != nil {
		return nil, err
	}
	if conversation != nil {
		if view.MessageCount, err = s.conversations.CountMessages(ctx, conversation.ID); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// StructuredData returns the step's collected asset data.
func (s *Service) StructuredData(ctx context.Context, user *models.User, stepID bson.ObjectID) (*models.StructuredData, error) {
	state, err := s.validatedStep(ctx, user, stepID)
	if err != nil {
		return nil, err
	}
	return models.StructuredDataFromStep(&state.UserOnboardingStep)
}

// Progress reports section completion for the step's data.
func (s *Service) Progress(ctx context.Context, user *models.User, stepID bson.ObjectID) (models.ChatProgress, error) {
	sd, err := s.StructuredData(ctx, user, stepID)
	if err != nil {
		return models.ChatProgress{}, err
	}
	return sd.Progress(), nil
}

// MessagesResult is one page of conversation history.
type MessagesResult struct {
	Messages []models.Message `json:"messages"`
	Total    int64            `json:"total"`
}

// Messages returns a chronological page of the step's conversation.
func (s *Service) Messages(ctx context.Context, user *models.User, stepID bson.ObjectID, limit, offset int) (*MessagesResult, error) {
	if _, err := s.validatedStep(ctx, user, stepID); err != nil {
		return nil, err
	}
	conversation, err := s.conversations.FindByUserAndStep(ctx, user.ID, stepID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return &MessagesResult{Messages: []models.Message{}}, nil
	}
	messages, err := s.conversations.MessagesPage(ctx, conversation.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.conversations.CountMessages(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return &MessagesResult{Messages: messages, Total: total}, nil
}

// Reset wipes the step's conversation and collected data in one
// transaction, reopening the step. It writes through the store directly
// so no completion side effects fire for the rollback.
func (s *Service) Reset(ctx context.Context, user *models.User, stepID bson.ObjectID) error {
	state, err := s.validatedStep(ctx, user, stepID)
	if err != nil {
		return err
	}
	return s.txn(ctx, func(ctx context.Context) error {
		conversation, err := s.conversations.FindByUserAndStep(ctx, user.ID, stepID)
		if err != nil {
			return err
		}
		if conversation != nil {
			if err := s.conversations.DeleteMessages(ctx, conversation.ID); err != nil {
				return err
			}
		}
		step := state.UserOnboardingStep
		delete(step.Data, models.StructuredDataKey)
		delete(step.Data, "last_updated")
		step.IsCompleted = false
		step.CompletedAt = nil
		return s.flows.SaveUserStep(ctx, &step)
	})
}
