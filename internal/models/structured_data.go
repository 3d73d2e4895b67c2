package models

import "encoding/json"

// Field names below are the wire contract shared with the frontend and
// the LLM tool schemas, hence the Portuguese keys.

type Imovel struct {
	Tipo           string   `bson:"tipo" json:"tipo"`
	Localizacao    string   `bson:"localizacao" json:"localizacao"`
	Status         string   `bson:"status" json:"status"`
	ValorEstimado  *float64 `bson:"valor_estimado,omitempty" json:"valor_estimado,omitempty"`
	RendaMensal    *float64 `bson:"renda_mensal,omitempty" json:"renda_mensal,omitempty"`
	Area           string   `bson:"area,omitempty" json:"area,omitempty"`
	DataAquisicao  string   `bson:"data_aquisicao,omitempty" json:"data_aquisicao,omitempty"`
	Observacoes    string   `bson:"observacoes,omitempty" json:"observacoes,omitempty"`
}

type Participacao struct {
	Empresa          string `bson:"empresa" json:"empresa"`
	Segmento         string `bson:"segmento" json:"segmento"`
	Participacao     string `bson:"participacao" json:"participacao"`
	FaturamentoAnual string `bson:"faturamento_anual,omitempty" json:"faturamento_anual,omitempty"`
	CNPJ             string `bson:"cnpj,omitempty" json:"cnpj,omitempty"`
	Posicao          string `bson:"posicao,omitempty" json:"posicao,omitempty"`
	DataCriacao      string `bson:"data_criacao,omitempty" json:"data_criacao,omitempty"`
	Observacoes      string `bson:"observacoes,omitempty" json:"observacoes,omitempty"`
}

type MembroFamilia struct {
	Nome        string `bson:"nome" json:"nome"`
	Parentesco  string `bson:"parentesco" json:"parentesco"`
	Idade       *int   `bson:"idade,omitempty" json:"idade,omitempty"`
	Ocupacao    string `bson:"ocupacao,omitempty" json:"ocupacao,omitempty"`
	CPF         string `bson:"cpf,omitempty" json:"cpf,omitempty"`
	Observacoes string `bson:"observacoes,omitempty" json:"observacoes,omitempty"`
}

type EstruturaFamiliar struct {
	EstadoCivil       string          `bson:"estado_civil,omitempty" json:"estado_civil,omitempty"`
	RegimeBens        string          `bson:"regime_bens,omitempty" json:"regime_bens,omitempty"`
	Conjuge           *MembroFamilia  `bson:"conjuge,omitempty" json:"conjuge,omitempty"`
	Filhos            []MembroFamilia `bson:"filhos,omitempty" json:"filhos,omitempty"`
	OutrosDependentes []MembroFamilia `bson:"outros_dependentes,omitempty" json:"outros_dependentes,omitempty"`
	Observacoes       string          `bson:"observacoes,omitempty" json:"observacoes,omitempty"`
}

type Investimento struct {
	Tipo          string   `bson:"tipo" json:"tipo"`
	Valor         *float64 `bson:"valor,omitempty" json:"valor,omitempty"`
	Detalhes      string   `bson:"detalhes,omitempty" json:"detalhes,omitempty"`
	Instituicao   string   `bson:"instituicao,omitempty" json:"instituicao,omitempty"`
	DataAplicacao string   `bson:"data_aplicacao,omitempty" json:"data_aplicacao,omitempty"`
	Observacoes   string   `bson:"observacoes,omitempty" json:"observacoes,omitempty"`
}

type OutroAtivo struct {
	Tipo        string   `bson:"tipo" json:"tipo"`
	Descricao   string   `bson:"descricao" json:"descricao"`
	Valor       *float64 `bson:"valor,omitempty" json:"valor,omitempty"`
	Observacoes string   `bson:"observacoes,omitempty" json:"observacoes,omitempty"`
}

// StructuredData is everything the guided chat extracts from the
// conversation. Lists are append-only from the chat's perspective;
// updates address entries by position.
type StructuredData struct {
	Imoveis           []Imovel           `bson:"imoveis" json:"imoveis"`
	Participacoes     []Participacao     `bson:"participacoes" json:"participacoes"`
	EstruturaFamiliar *EstruturaFamiliar `bson:"estrutura_familiar,omitempty" json:"estrutura_familiar,omitempty"`
	Investimentos     []Investimento     `bson:"investimentos" json:"investimentos"`
	OutrosAtivos      []OutroAtivo       `bson:"outros_ativos" json:"outros_ativos"`
}

type ChatProgress struct {
	CompletedSections int      `json:"completed_sections"`
	TotalSections     int      `json:"total_sections"`
	Percentage        int      `json:"percentage"`
	MissingData       []string `json:"missing_data"`
}

// Progress reports how many of the five data sections have content.
// The family section counts once marital status, a spouse or at least
// one child is known.
func (sd *StructuredData) Progress() ChatProgress {
	p := ChatProgress{TotalSections: 5, MissingData: []string{}}

	if len(sd.Imoveis) > 0 {
		p.CompletedSections++
	} else {
		p.MissingData = append(p.MissingData, "Imóveis")
	}

	if len(sd.Participacoes) > 0 {
		p.CompletedSections++
	} else {
		p.MissingData = append(p.MissingData, "Participações Societárias")
	}

	ef := sd.EstruturaFamiliar
	if ef != nil && (ef.EstadoCivil != "" || ef.Conjuge != nil || len(ef.Filhos) > 0) {
		p.CompletedSections++
	} else {
		p.MissingData = append(p.MissingData, "Estrutura Familiar")
	}

	if len(sd.Investimentos) > 0 {
		p.CompletedSections++
	} else {
		p.MissingData = append(p.MissingData, "Investimentos")
	}

	if len(sd.OutrosAtivos) > 0 {
		p.CompletedSections++
	} else {
		p.MissingData = append(p.MissingData, "Outros Ativos")
	}

	p.Percentage = p.CompletedSections * 100 / p.TotalSections
	return p
}

// StructuredDataFromStep decodes the structured_data payload of a chat
// step. A step without the key yields an empty document.
func StructuredDataFromStep(step *UserOnboardingStep) (*StructuredData, error) {
	if step.Data == nil {
		return &StructuredData{}, nil
	}
	raw, ok := step.Data[StructuredDataKey]
	if !ok {
		return &StructuredData{}, nil
	}

	// The payload arrives as an untyped map regardless of whether it
	// came from Mongo or a JSON body; a round trip gives us the typed view.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var sd StructuredData
	if err := json.Unmarshal(buf, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

// AsStepData converts the typed document back into the open map stored
// on the step, preserving the schema-on-read storage contract.
func (sd *StructuredData) AsStepData() (map[string]any, error) {
	buf, err := json.Marshal(sd)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, err
	}
	return m, nil
}
