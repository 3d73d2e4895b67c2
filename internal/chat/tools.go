package chat

import (
	"encoding/json"
	"fmt"
	"strconv"

	"holding-backend/internal/llm"
	"holding-backend/internal/models"
)

const systemPrompt = `Você é um assistente especializado em estruturação patrimonial para criação de holdings familiares.

Sua função é conversar naturalmente com o usuário e extrair informações sobre:
1. Imóveis (tipo, localização, valor, status de uso, área, data de aquisição)
2. Participações societárias (empresa, participação, faturamento, CNPJ, posição)
3. Estrutura familiar (estado civil, cônjuge, filhos, regime de bens)
4. Investimentos (tipo, valor, detalhes, instituição)
5. Outros ativos (veículos, obras de arte, etc.)

IMPORTANTE:
- Sempre que identificar informações suficientes sobre qualquer item, utilize as ferramentas para estruturar os dados
- Seja natural na conversa, não robotizado
- Faça perguntas para esclarecer informações quando necessário
- Quando o usuário fornecer informações parciais, adicione o que conseguir e pergunte pelos detalhes faltantes
- Use as ferramentas mesmo com informações incompletas - é melhor ter algo estruturado do que nada
- Sempre confirme os dados antes de adicioná-los

Seja sempre cordial, profissional e didático. Explique a importância de cada informação para a estruturação patrimonial.
Sempre que fizer algo, alguma ação, sugira a próxima ação, com base nas ferramentas.`

// schema builds a JSON-schema object for a tool.
func schema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

var memberProps = map[string]any{
	"nome":        str("Nome completo"),
	"idade":       integer("Idade"),
	"ocupacao":    str("Ocupação/profissão"),
	"cpf":         str("CPF"),
	"observacoes": str("Observações adicionais"),
}

func toolDefs() []llm.Tool {
	imovelProps := map[string]any{
		"tipo":           str("Tipo do imóvel (apartamento, casa, etc.)"),
		"localizacao":    str("Localização do imóvel"),
		"status":         str("Status do imóvel (próprio, alugado, etc.)"),
		"valor_estimado": str("Valor estimado em R$"),
		"renda_mensal":   str("Renda mensal em R$, se alugado"),
		"area":           str("Área do imóvel"),
		"data_aquisicao": str("Data de aquisição"),
		"observacoes":    str("Observações adicionais"),
	}
	dependenteProps := map[string]any{"parentesco": str("Grau de parentesco")}
	for k, v := range memberProps {
		dependenteProps[k] = v
	}
	atualizarImovelProps := map[string]any{
		"indice": integer("Índice do imóvel na lista, começando em 0"),
	}
	for k, v := range imovelProps {
		atualizarImovelProps[k] = v
	}

	return []llm.Tool{
		{
			Name:        "adicionar_imovel",
			Description: "Adiciona um novo imóvel à lista de bens.",
			Parameters:  schema(imovelProps, "tipo", "localizacao", "status"),
		},
		{
			Name:        "atualizar_imovel",
			Description: "Atualiza dados de um imóvel existente.",
			Parameters:  schema(atualizarImovelProps, "indice"),
		},
		{
			Name:        "adicionar_participacao",
			Description: "Adiciona uma nova participação societária.",
			Parameters: schema(map[string]any{
				"empresa":           str("Nome da empresa"),
				"segmento":          str("Segmento de atuação"),
				"participacao":      str("Percentual de participação"),
				"faturamento_anual": str("Faturamento anual"),
				"cnpj":              str("CNPJ da empresa"),
				"posicao":           str("Posição na empresa"),
				"data_criacao":      str("Data de criação/entrada"),
				"observacoes":       str("Observações adicionais"),
			}, "empresa", "segmento", "participacao"),
		},
		{
			Name:        "atualizar_estrutura_familiar",
			Description: "Atualiza informações gerais da estrutura familiar.",
			Parameters: schema(map[string]any{
				"estado_civil": str("Estado civil"),
				"regime_bens":  str("Regime de bens"),
				"observacoes":  str("Observações adicionais"),
			}),
		},
		{
			Name:        "adicionar_conjuge",
			Description: "Adiciona informações do cônjuge.",
			Parameters:  schema(memberProps, "nome"),
		},
		{
			Name:        "adicionar_filho",
			Description: "Adiciona um filho à estrutura familiar.",
			Parameters:  schema(memberProps, "nome"),
		},
		{
			Name:        "adicionar_dependente",
			Description: "Adiciona outro dependente à estrutura familiar.",
			Parameters:  schema(dependenteProps, "nome", "parentesco"),
		},
		{
			Name:        "adicionar_investimento",
			Description: "Adiciona um investimento ou ativo financeiro.",
			Parameters: schema(map[string]any{
				"tipo":           str("Tipo de investimento"),
				"valor":          str("Valor em R$"),
				"detalhes":       str("Detalhes do investimento"),
				"instituicao":    str("Instituição financeira"),
				"data_aplicacao": str("Data da aplicação"),
				"observacoes":    str("Observações adicionais"),
			}, "tipo"),
		},
		{
			Name:        "adicionar_outro_ativo",
			Description: "Adiciona outros tipos de ativos (veículos, obras de arte, etc.).",
			Parameters: schema(map[string]any{
				"tipo":        str("Tipo do ativo"),
				"descricao":   str("Descrição do ativo"),
				"valor":       str("Valor estimado em R$"),
				"observacoes": str("Observações adicionais"),
			}, "tipo", "descricao"),
		},
		{
			Name:        "obter_resumo_dados",
			Description: "Retorna um resumo dos dados coletados até agora.",
			Parameters:  schema(map[string]any{}),
		},
	}
}

// command is one typed mutation derived from a tool call, applied to
// the request-scoped structured-data snapshot. The returned string goes
// back to the model as the tool result.
type command interface {
	apply(sd *models.StructuredData) string
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

type imovelArgs struct {
	Tipo          string `json:"tipo"`
	Localizacao   string `json:"localizacao"`
	Status        string `json:"status"`
	ValorEstimado string `json:"valor_estimado"`
	RendaMensal   string `json:"renda_mensal"`
	Area          string `json:"area"`
	DataAquisicao string `json:"data_aquisicao"`
	Observacoes   string `json:"observacoes"`
}

type appendImovel struct{ imovelArgs }

func (c appendImovel) apply(sd *models.StructuredData) string {
	sd.Imoveis = append(sd.Imoveis, models.Imovel{
		Tipo:          c.Tipo,
		Localizacao:   c.Localizacao,
		Status:        c.Status,
		ValorEstimado: parseFloat(c.ValorEstimado),
		RendaMensal:   parseFloat(c.RendaMensal),
		Area:          c.Area,
		DataAquisicao: c.DataAquisicao,
		Observacoes:   c.Observacoes,
	})
	return fmt.Sprintf("Imóvel adicionado: %s em %s", c.Tipo, c.Localizacao)
}

type updateImovel struct {
	Indice int `json:"indice"`
	imovelArgs
}

func (c updateImovel) apply(sd *models.StructuredData) string {
	if c.Indice < 0 || c.Indice >= len(sd.Imoveis) {
		return "Índice de imóvel inválido"
	}
	imovel := &sd.Imoveis[c.Indice]
	if c.Tipo != "" {
		imovel.Tipo = c.Tipo
	}
	if c.Localizacao != "" {
		imovel.Localizacao = c.Localizacao
	}
	if c.Status != "" {
		imovel.Status = c.Status
	}
	if v := parseFloat(c.ValorEstimado); v != nil {
		imovel.ValorEstimado = v
	}
	if v := parseFloat(c.RendaMensal); v != nil {
		imovel.RendaMensal = v
	}
	if c.Area != "" {
		imovel.Area = c.Area
	}
	if c.DataAquisicao != "" {
		imovel.DataAquisicao = c.DataAquisicao
	}
	if c.Observacoes != "" {
		imovel.Observacoes = c.Observacoes
	}
	return fmt.Sprintf("Imóvel %d atualizado", c.Indice+1)
}

type appendParticipacao struct {
	Empresa          string `json:"empresa"`
	Segmento         string `json:"segmento"`
	Participacao     string `json:"participacao"`
	FaturamentoAnual string `json:"faturamento_anual"`
	CNPJ             string `json:"cnpj"`
	Posicao          string `json:"posicao"`
	DataCriacao      string `json:"data_criacao"`
	Observacoes      string `json:"observacoes"`
}

func (c appendParticipacao) apply(sd *models.StructuredData) string {
	sd.Participacoes = append(sd.Participacoes, models.Participacao{
		Empresa:          c.Empresa,
		Segmento:         c.Segmento,
		Participacao:     c.Participacao,
		FaturamentoAnual: c.FaturamentoAnual,
		CNPJ:             c.CNPJ,
		Posicao:          c.Posicao,
		DataCriacao:      c.DataCriacao,
		Observacoes:      c.Observacoes,
	})
	return fmt.Sprintf("Participação societária adicionada: %s (%s)", c.Empresa, c.Participacao)
}

type setFamilyStructure struct {
	EstadoCivil string `json:"estado_civil"`
	RegimeBens  string `json:"regime_bens"`
	Observacoes string `json:"observacoes"`
}

func (c setFamilyStructure) apply(sd *models.StructuredData) string {
	ef := ensureFamily(sd)
	if c.EstadoCivil != "" {
		ef.EstadoCivil = c.EstadoCivil
	}
	if c.RegimeBens != "" {
		ef.RegimeBens = c.RegimeBens
	}
	if c.Observacoes != "" {
		ef.Observacoes = c.Observacoes
	}
	return "Estrutura familiar atualizada"
}

type memberArgs struct {
	Nome        string `json:"nome"`
	Parentesco  string `json:"parentesco"`
	Idade       *int   `json:"idade"`
	Ocupacao    string `json:"ocupacao"`
	CPF         string `json:"cpf"`
	Observacoes string `json:"observacoes"`
}

func (a memberArgs) member(parentesco string) models.MembroFamilia {
	if a.Parentesco != "" {
		parentesco = a.Parentesco
	}
	return models.MembroFamilia{
		Nome:        a.Nome,
		Parentesco:  parentesco,
		Idade:       a.Idade,
		Ocupacao:    a.Ocupacao,
		CPF:         a.CPF,
		Observacoes: a.Observacoes,
	}
}

type setSpouse struct{ memberArgs }

func (c setSpouse) apply(sd *models.StructuredData) string {
	ensureFamily(sd).Conjuge = ptr(c.member("cônjuge"))
	return fmt.Sprintf("Cônjuge adicionado: %s", c.Nome)
}

type appendChild struct{ memberArgs }

func (c appendChild) apply(sd *models.StructuredData) string {
	ef := ensureFamily(sd)
	ef.Filhos = append(ef.Filhos, c.member("filho"))
	return fmt.Sprintf("Filho adicionado: %s", c.Nome)
}

type appendDependent struct{ memberArgs }

func (c appendDependent) apply(sd *models.StructuredData) string {
	ef := ensureFamily(sd)
	m := c.member("dependente")
	ef.OutrosDependentes = append(ef.OutrosDependentes, m)
	return fmt.Sprintf("Dependente adicionado: %s (%s)", m.Nome, m.Parentesco)
}

type appendInvestimento struct {
	Tipo          string `json:"tipo"`
	Valor         string `json:"valor"`
	Detalhes      string `json:"detalhes"`
	Instituicao   string `json:"instituicao"`
	DataAplicacao string `json:"data_aplicacao"`
	Observacoes   string `json:"observacoes"`
}

func (c appendInvestimento) apply(sd *models.StructuredData) string {
	sd.Investimentos = append(sd.Investimentos, models.Investimento{
		Tipo:          c.Tipo,
		Valor:         parseFloat(c.Valor),
		Detalhes:      c.Detalhes,
		Instituicao:   c.Instituicao,
		DataAplicacao: c.DataAplicacao,
		Observacoes:   c.Observacoes,
	})
	return fmt.Sprintf("Investimento adicionado: %s", c.Tipo)
}

type appendOutroAtivo struct {
	Tipo        string `json:"tipo"`
	Descricao   string `json:"descricao"`
	Valor       string `json:"valor"`
	Observacoes string `json:"observacoes"`
}

func (c appendOutroAtivo) apply(sd *models.StructuredData) string {
	sd.OutrosAtivos = append(sd.OutrosAtivos, models.OutroAtivo{
		Tipo:        c.Tipo,
		Descricao:   c.Descricao,
		Valor:       parseFloat(c.Valor),
		Observacoes: c.Observacoes,
	})
	return fmt.Sprintf("Ativo adicionado: %s - %s", c.Tipo, c.Descricao)
}

type summarize struct{}

func (summarize) apply(sd *models.StructuredData) string {
	family := "Pendente"
	if ef := sd.EstruturaFamiliar; ef != nil && ef.EstadoCivil != "" {
		family = "Configurada"
	}
	return fmt.Sprintf(`Resumo dos dados coletados:

Imóveis: %d item(s)
Participações Societárias: %d item(s)
Estrutura Familiar: %s
Investimentos: %d item(s)
Outros Ativos: %d item(s)`,
		len(sd.Imoveis), len(sd.Participacoes), family,
		len(sd.Investimentos), len(sd.OutrosAtivos))
}

func ensureFamily(sd *models.StructuredData) *models.EstruturaFamiliar {
	if sd.EstruturaFamiliar == nil {
		sd.EstruturaFamiliar = &models.EstruturaFamiliar{}
	}
	return sd.EstruturaFamiliar
}

func ptr[T any](v T) *T { return &v }

// parseToolCall turns a model tool call into a typed command.
func parseToolCall(call llm.ToolCall) (command, error) {
	decode := func(v any) error {
		if call.Arguments == "" {
			return nil
		}
		return json.Unmarshal([]byte(call.Arguments), v)
	}

	switch call.Name {
	case "adicionar_imovel":
		var c appendImovel
		return c, decode(&c)
	case "atualizar_imovel":
		var c updateImovel
		return c, decode(&c)
	case "adicionar_participacao":
		var c appendParticipacao
		return c, decode(&c)
	case "atualizar_estrutura_familiar":
		var c setFamilyStructure
		return c, decode(&c)
	case "adicionar_conjuge":
		var c setSpouse
		return c, decode(&c)
	case "adicionar_filho":
		var c appendChild
		return c, decode(&c)
	case "adicionar_dependente":
		var c appendDependent
		return c, decode(&c)
	case "adicionar_investimento":
		var c appendInvestimento
		return c, decode(&c)
	case "adicionar_outro_ativo":
		var c appendOutroAtivo
		return c, decode(&c)
	case "obter_resumo_dados":
		return summarize{}, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

// runToolCall applies one tool call to the snapshot and returns the
// result text for the model; bad calls report back instead of failing
// the turn.
func runToolCall(sd *models.StructuredData, call llm.ToolCall) string {
	cmd, err := parseToolCall(call)
	if err != nil {
		return fmt.Sprintf("Erro: %v", err)
	}
	return cmd.apply(sd)
}
