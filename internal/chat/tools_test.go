package chat

import (
	"testing"

	"holding-backend/internal/llm"
	"holding-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunToolCall_AddProperty(t *testing.T) {
	sd := &models.StructuredData{}
	result := runToolCall(sd, llm.ToolCall{
		Name:      "adicionar_imovel",
		Arguments: `{"tipo":"apartamento","localizacao":"São Paulo","status":"alugado","valor_estimado":"850000","renda_mensal":"3500"}`,
	})

	assert.Equal(t, "Imóvel adicionado: apartamento em São Paulo", result)
	require.Len(t, sd.Imoveis, 1)
	assert.Equal(t, "alugado", sd.Imoveis[0].Status)
	require.NotNil(t, sd.Imoveis[0].ValorEstimado)
	assert.Equal(t, 850000.0, *sd.Imoveis[0].ValorEstimado)
	require.NotNil(t, sd.Imoveis[0].RendaMensal)
	assert.Equal(t, 3500.0, *sd.Imoveis[0].RendaMensal)
}

func TestRunToolCall_UpdateProperty(t *testing.T) {
	sd := &models.StructuredData{
		Imoveis: []models.Imovel{{Tipo: "casa", Localizacao: "Santos", Status: "próprio"}},
	}

	result := runToolCall(sd, llm.ToolCall{
		Name:      "atualizar_imovel",
		Arguments: `{"indice":0,"status":"alugado","renda_mensal":"2000"}`,
	})

	assert.Equal(t, "Imóvel 1 atualizado", result)
	assert.Equal(t, "alugado", sd.Imoveis[0].Status)
	assert.Equal(t, "casa", sd.Imoveis[0].Tipo, "untouched fields keep their values")
	require.NotNil(t, sd.Imoveis[0].RendaMensal)
	assert.Equal(t, 2000.0, *sd.Imoveis[0].RendaMensal)
}

func TestRunToolCall_UpdatePropertyBadIndex(t *testing.T) {
	sd := &models.StructuredData{}
	result := runToolCall(sd, llm.ToolCall{
		Name:      "atualizar_imovel",
		Arguments: `{"indice":3}`,
	})
	assert.Equal(t, "Índice de imóvel inválido", result)
}

func TestRunToolCall_FamilyStructure(t *testing.T) {
	sd := &models.StructuredData{}

	runToolCall(sd, llm.ToolCall{
		Name:      "atualizar_estrutura_familiar",
		Arguments: `{"estado_civil":"casado","regime_bens":"comunhão parcial"}`,
	})
	runToolCall(sd, llm.ToolCall{
		Name:      "adicionar_conjuge",
		Arguments: `{"nome":"Maria","idade":42}`,
	})
	runToolCall(sd, llm.ToolCall{
		Name:      "adicionar_filho",
		Arguments: `{"nome":"Ana"}`,
	})
	runToolCall(sd, llm.ToolCall{
		Name:      "adicionar_dependente",
		Arguments: `{"nome":"José","parentesco":"pai"}`,
	})

	ef := sd.EstruturaFamiliar
	require.NotNil(t, ef)
	assert.Equal(t, "casado", ef.EstadoCivil)
	require.NotNil(t, ef.Conjuge)
	assert.Equal(t, "Maria", ef.Conjuge.Nome)
	require.NotNil(t, ef.Conjuge.Idade)
	assert.Equal(t, 42, *ef.Conjuge.Idade)
	require.Len(t, ef.Filhos, 1)
	assert.Equal(t, "filho", ef.Filhos[0].Parentesco)
	require.Len(t, ef.OutrosDependentes, 1)
	assert.Equal(t, "pai", ef.OutrosDependentes[0].Parentesco)
}

func TestRunToolCall_Summary(t *testing.T) {
	sd := &models.StructuredData{
		Imoveis:       []models.Imovel{{Tipo: "casa"}},
		Investimentos: []models.Investimento{{Tipo: "CDB"}, {Tipo: "ações"}},
	}
	result := runToolCall(sd, llm.ToolCall{Name: "obter_resumo_dados"})

	assert.Contains(t, result, "Imóveis: 1 item(s)")
	assert.Contains(t, result, "Investimentos: 2 item(s)")
	assert.Contains(t, result, "Estrutura Familiar: Pendente")
}

func TestRunToolCall_UnknownTool(t *testing.T) {
	sd := &models.StructuredData{}
	result := runToolCall(sd, llm.ToolCall{Name: "ferramenta_inexistente"})
	assert.Contains(t, result, "Erro")
}

func TestToolDefs_CoverAllMutations(t *testing.T) {
	names := map[string]bool{}
	for _, tool := range toolDefs() {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"adicionar_imovel", "atualizar_imovel", "adicionar_participacao",
		"atualizar_estrutura_familiar", "adicionar_conjuge", "adicionar_filho",
		"adicionar_dependente", "adicionar_investimento", "adicionar_outro_ativo",
		"obter_resumo_dados",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}
