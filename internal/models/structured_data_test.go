package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_Empty(t *testing.T) {
	sd := &StructuredData{}
	p := sd.Progress()

	assert.Equal(t, 0, p.CompletedSections)
	assert.Equal(t, 5, p.TotalSections)
	assert.Equal(t, 0, p.Percentage)
	assert.Equal(t, []string{
		"Imóveis",
		"Participações Societárias",
		"Estrutura Familiar",
		"Investimentos",
		"Outros Ativos",
	}, p.MissingData)
}

func TestProgress_PartiallyFilled(t *testing.T) {
	sd := &StructuredData{
		Imoveis:       []Imovel{{Tipo: "apartamento", Localizacao: "São Paulo", Status: "próprio"}},
		Investimentos: []Investimento{{Tipo: "CDB"}},
	}
	p := sd.Progress()

	assert.Equal(t, 2, p.CompletedSections)
	assert.Equal(t, 40, p.Percentage)
	assert.NotContains(t, p.MissingData, "Imóveis")
	assert.Contains(t, p.MissingData, "Estrutura Familiar")
}

func TestProgress_FamilySectionVariants(t *testing.T) {
	// An allocated but empty family structure does not count.
	sd := &StructuredData{EstruturaFamiliar: &EstruturaFamiliar{}}
	assert.Contains(t, sd.Progress().MissingData, "Estrutura Familiar")

	sd.EstruturaFamiliar.EstadoCivil = "casado"
	assert.NotContains(t, sd.Progress().MissingData, "Estrutura Familiar")

	sd = &StructuredData{EstruturaFamiliar: &EstruturaFamiliar{
		Filhos: []MembroFamilia{{Nome: "Ana", Parentesco: "filho"}},
	}}
	assert.NotContains(t, sd.Progress().MissingData, "Estrutura Familiar")
}

func TestStructuredDataFromStep_MissingKey(t *testing.T) {
	sd, err := StructuredDataFromStep(&UserOnboardingStep{})
	require.NoError(t, err)
	assert.Empty(t, sd.Imoveis)

	sd, err = StructuredDataFromStep(&UserOnboardingStep{Data: map[string]any{"other": 1}})
	require.NoError(t, err)
	assert.Empty(t, sd.Participacoes)
}

func TestStructuredDataStepRoundTrip(t *testing.T) {
	valor := 500000.0
	original := &StructuredData{
		Imoveis: []Imovel{{
			Tipo:          "casa",
			Localizacao:   "Campinas",
			Status:        "alugado",
			ValorEstimado: &valor,
		}},
		EstruturaFamiliar: &EstruturaFamiliar{EstadoCivil: "casado"},
	}

	data, err := original.AsStepData()
	require.NoError(t, err)

	step := &UserOnboardingStep{Data: map[string]any{StructuredDataKey: data}}
	decoded, err := StructuredDataFromStep(step)
	require.NoError(t, err)

	require.Len(t, decoded.Imoveis, 1)
	assert.Equal(t, "casa", decoded.Imoveis[0].Tipo)
	require.NotNil(t, decoded.Imoveis[0].ValorEstimado)
	assert.Equal(t, valor, *decoded.Imoveis[0].ValorEstimado)
	require.NotNil(t, decoded.EstruturaFamiliar)
	assert.Equal(t, "casado", decoded.EstruturaFamiliar.EstadoCivil)
}
