package onboarding

import (
	"context"
	"fmt"
	"strings"

	"holding-backend/internal/apperr"
	"holding-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// NewRequirement is one document requirement derived from the
// structured data, not yet bound to a step.
type NewRequirement struct {
	DocType     string
	Name        string
	Description string
	Reason      string
	IsRequired  bool
	Priority    int
}

// Synthesize derives the document requirements implied by the
// structured data, skipping doc_types already present on the target
// step. Pure: the caller persists the result. Slugs are positional
// (1-based) within each list at synthesis time; removing an item later
// never retracts or renumbers a requirement already created.
func Synthesize(sd *models.StructuredData, existing map[string]bool) []NewRequirement {
	var out []NewRequirement
	add := func(req NewRequirement) {
		if !existing[req.DocType] {
			out = append(out, req)
		}
	}

	for i, imovel := range sd.Imoveis {
		n := i + 1
		add(NewRequirement{
			DocType:     fmt.Sprintf("imovel_%d_posse", n),
			Name:        fmt.Sprintf("Comprovante de posse — Imóvel %d", n),
			Description: fmt.Sprintf("Escritura, matrícula ou contrato do imóvel %s em %s", imovel.Tipo, imovel.Localizacao),
			Reason:      fmt.Sprintf("Imóvel %d informado na entrevista (%s)", n, imovel.Tipo),
			IsRequired:  true,
			Priority:    1,
		})
		if strings.Contains(strings.ToLower(imovel.Status), "alug") {
			add(NewRequirement{
				DocType:     fmt.Sprintf("imovel_%d_contrato_aluguel", n),
				Name:        fmt.Sprintf("Contrato de aluguel — Imóvel %d", n),
				Description: fmt.Sprintf("Contrato de locação vigente do imóvel %s em %s", imovel.Tipo, imovel.Localizacao),
				Reason:      fmt.Sprintf("Imóvel %d está alugado", n),
				IsRequired:  true,
				Priority:    2,
			})
		}
	}

	for i, p := range sd.Participacoes {
		n := i + 1
		add(NewRequirement{
			DocType:     fmt.Sprintf("participacao_%d_comprovante", n),
			Name:        fmt.Sprintf("Comprovante de participação — %s", p.Empresa),
			Description: fmt.Sprintf("Contrato social ou documento societário comprovando a participação na empresa %s", p.Empresa),
			Reason:      fmt.Sprintf("Participação societária %d informada na entrevista (%s)", n, p.Empresa),
			IsRequired:  true,
			Priority:    1,
		})
		add(NewRequirement{
			DocType:     fmt.Sprintf("participacao_%d_balanco", n),
			Name:        fmt.Sprintf("Balanço patrimonial — %s", p.Empresa),
			Description: fmt.Sprintf("Último balanço patrimonial da empresa %s", p.Empresa),
			Reason:      fmt.Sprintf("Apoio à avaliação da participação societária %d", n),
			IsRequired:  false,
			Priority:    2,
		})
	}

	if ef := sd.EstruturaFamiliar; ef != nil {
		if strings.Contains(strings.ToLower(ef.EstadoCivil), "casad") {
			add(NewRequirement{
				DocType:     "certidao_casamento",
				Name:        "Certidão de casamento",
				Description: "Certidão de casamento atualizada",
				Reason:      "Estado civil casado informado na entrevista",
				IsRequired:  true,
				Priority:    1,
			})
		}
		for i, filho := range ef.Filhos {
			n := i + 1
			add(NewRequirement{
				DocType:     fmt.Sprintf("certidao_nascimento_filho_%d", n),
				Name:        fmt.Sprintf("Certidão de nascimento — Filho %d", n),
				Description: fmt.Sprintf("Certidão de nascimento de %s", filho.Nome),
				Reason:      fmt.Sprintf("Filho %d informado na estrutura familiar", n),
				IsRequired:  true,
				Priority:    2,
			})
		}
	}

	for i, inv := range sd.Investimentos {
		n := i + 1
		add(NewRequirement{
			DocType:     fmt.Sprintf("investimento_%d_comprovante", n),
			Name:        fmt.Sprintf("Comprovante de investimento %d", n),
			Description: fmt.Sprintf("Extrato ou posição do investimento em %s", inv.Tipo),
			Reason:      fmt.Sprintf("Investimento %d informado na entrevista (%s)", n, inv.Tipo),
			IsRequired:  true,
			Priority:    2,
		})
	}

	for i, ativo := range sd.OutrosAtivos {
		n := i + 1
		add(NewRequirement{
			DocType:     fmt.Sprintf("outro_ativo_%d_comprovante", n),
			Name:        fmt.Sprintf("Comprovante de ativo %d", n),
			Description: fmt.Sprintf("Documento de propriedade de %s", ativo.Descricao),
			Reason:      fmt.Sprintf("Ativo %d informado na entrevista (%s)", n, ativo.Tipo),
			IsRequired:  true,
			Priority:    2,
		})
	}

	// Baseline documents requested from every client regardless of the
	// interview content.
	add(NewRequirement{
		DocType:     "rg",
		Name:        "RG",
		Description: "Documento de Identidade",
		Reason:      "Documento básico de identificação",
		IsRequired:  true,
		Priority:    1,
	})
	add(NewRequirement{
		DocType:     "cpf",
		Name:        "CPF",
		Description: "Cadastro de Pessoa Física",
		Reason:      "Documento básico de identificação",
		IsRequired:  true,
		Priority:    1,
	})
	add(NewRequirement{
		DocType:     "comprovante_residencia",
		Name:        "Comprovante de Residência",
		Description: "Conta de consumo recente em nome do cliente",
		Reason:      "Comprovação de endereço",
		IsRequired:  true,
		Priority:    1,
	})

	return out
}

// RequirementStore is the persistence slice the synthesis service needs.
type RequirementStore interface {
	DocTypesByStep(ctx context.Context, stepID bson.ObjectID) (map[string]bool, error)
	CreateMany(ctx context.Context, requirements []models.DocumentRequirement) error
}

// Txn runs fn atomically. database.WithTransaction in production, a
// passthrough in tests.
type Txn func(ctx context.Context, fn func(ctx context.Context) error) error

// RequirementService listens for chat step completion and materializes
// the derived requirements onto the flow's data-verification step.
type RequirementService struct {
	store RequirementStore
	flows Store
	txn   Txn
}

func NewRequirementService(store RequirementStore, flows Store, txn Txn) *RequirementService {
	return &RequirementService{store: store, flows: flows, txn: txn}
}

func (s *RequirementService) HandleStepCompleted(ctx context.Context, evt StepCompletedEvent) error {
	steps, err := s.flows.StepsByFlow(ctx, evt.UserFlow.FlowID)
	if err != nil {
		return err
	}
	var target *models.OnboardingStep
	for i := range steps {
		if steps[i].Type == models.StepDataVerification {
			target = &steps[i]
			break
		}
	}
	if target == nil {
		return apperr.InvalidState("flow has no data verification step")
	}

	sd, err := models.StructuredDataFromStep(evt.UserStep)
	if err != nil {
		return err
	}
	return s.SynthesizeForStep(ctx, sd, target.ID)
}

// SynthesizeForStep derives and persists requirements in one
// transaction: either the full new set commits or none of it does.
func (s *RequirementService) SynthesizeForStep(ctx context.Context, sd *models.StructuredData, stepID bson.ObjectID) error {
	return s.txn(ctx, func(ctx context.Context) error {
		existing, err := s.store.DocTypesByStep(ctx, stepID)
		if err != nil {
			return err
		}
		derived := Synthesize(sd, existing)
		if len(derived) == 0 {
			return nil
		}

		requirements := make([]models.DocumentRequirement, len(derived))
		for i, req := range derived {
			requirements[i] = models.DocumentRequirement{
				StepID:        stepID,
				Name:          req.Name,
				Description:   req.Description,
				DocType:       req.DocType,
				IsRequired:    req.IsRequired,
				Priority:      req.Priority,
				CreatedByType: models.CreatedBySystem,
				Reason:        req.Reason,
			}
		}
		return s.store.CreateMany(ctx, requirements)
	})
}
