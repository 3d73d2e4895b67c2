package onboarding

import (
	"context"
	"time"

	"holding-backend/internal/models"
	"holding-backend/internal/repository"
)

// DefaultFlowName identifies the flow template assigned at signup.
const DefaultFlowName = "Cadastro de Usuário"

// EnsureDefaultFlow creates the default three-step flow template if it
// does not exist yet.
func EnsureDefaultFlow(ctx context.Context, repo *repository.OnboardingRepo) (*models.OnboardingFlow, error) {
	flow, err := repo.FlowByName(ctx, DefaultFlowName)
	if err != nil {
		return nil, err
	}
	if flow != nil {
		return flow, nil
	}

	flow = &models.OnboardingFlow{
		Name:        DefaultFlowName,
		Description: "Processo completo de cadastro e coleta de informações",
	}
	if err := repo.CreateFlow(ctx, flow); err != nil {
		return nil, err
	}

	steps := []models.OnboardingStep{
		{
			FlowID:      flow.ID,
			Name:        "Dados Pessoais",
			Description: "Preencher informações pessoais e fazer upload de documentos de identificação",
			Order:       1,
			Type:        models.StepPersonalData,
		},
		{
			FlowID:      flow.ID,
			Name:        "Entrevista Assistida",
			Description: "Conversa com assistente virtual para estruturar suas informações familiares e patrimoniais",
			Order:       2,
			Type:        models.StepLLMChat,
		},
		{
			FlowID:      flow.ID,
			Name:        "Verificação Documental",
			Description: "Envio de documentos para comprovar as informações fornecidas",
			Order:       3,
			Type:        models.StepDataVerification,
		},
	}
	for i := range steps {
		if err := repo.CreateStep(ctx, &steps[i]); err != nil {
			return nil, err
		}
	}
	return flow, nil
}

// AssignFlowToUser instantiates the flow for a freshly created user:
// one user flow plus one user step per template step. Consultants never
// get onboarding; the caller enforces that.
func AssignFlowToUser(ctx context.Context, repo *repository.OnboardingRepo, flow *models.OnboardingFlow, user *models.User) (*models.UserOnboardingFlow, error) {
	userFlow := &models.UserOnboardingFlow{
		UserID:    user.ID,
		FlowID:    flow.ID,
		StartedAt: time.Now(),
	}
	if err := repo.CreateUserFlow(ctx, userFlow); err != nil {
		return nil, err
	}

	steps, err := repo.StepsByFlow(ctx, flow.ID)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		userStep := &models.UserOnboardingStep{
			UserFlowID: userFlow.ID,
			StepID:     step.ID,
		}
		if err := repo.CreateUserStep(ctx, userStep); err != nil {
			return nil, err
		}
	}
	return userFlow, nil
}
