package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/romanzh1/mindful-garden/internal/models"
	"github.com/romanzh1/mindful-garden/pkg/gemini"
	"go.uber.org/zap"
)

const systemPrompt = `Você é o "Mindful Coach", um assistente empático especializado em TDAH.
Seu objetivo é ajudar usuários a superarem a paralisia de decisão e a procrastinação.

METÁFORA DO JARDIM:
O progresso do usuário é representado por um Jardim Lúdico.
- Cada pequena ação é uma "Semente de Luz".
- Voltar ao app traz "Orvalho de Constância".
- Sessões de foco são como "Raios de Sol".

REGRAS NARRATIVAS:
- Use tom calmo, acolhedor e humano.
- Foque em micro-ações absurdamente pequenas.
- Se o objetivo for grande, quebre-o até que a primeira ação leve menos de 2 minutos.`

const (
	DefaultPrompt = "Dê uma mensagem de apoio matinal para alguém com TDAH."

	adviceTemperature = 0.7

	fallbackAdvice  = "Estou aqui com você. Seu jardim está em paz, vamos dar apenas um passinho hoje?"
	fallbackInsight = "Seu jardim está crescendo lindamente, no seu ritmo."
	fallbackQuote   = "O importante é começar. Cada semente importa."
	fallbackProject = "Abrir um bloco de notas"
	fallbackHabit   = "Fazer por 1 minuto"
	fallbackIcon    = "🌱"
)

// Generator is the text-generation backend. *gemini.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, temperature float64) (string, error)
	GenerateJSON(ctx context.Context, system, prompt string, schema *gemini.Schema, result any) error
}

type Breakdown struct {
	Steps             []string `json:"steps"`
	MotivationalQuote string   `json:"motivationalQuote"`
}

type ProjectPlan struct {
	Name       string `json:"name"`
	NextAction string `json:"nextAction"`
}

type HabitPlan struct {
	Name        string `json:"name"`
	MicroAction string `json:"microAction"`
	Icon        string `json:"icon"`
}

// Coach never returns an error: every request resolves to a usable value.
type Coach struct {
	gen Generator
}

// New accepts a nil generator; the coach then answers with fallbacks only.
func New(gen Generator) *Coach {
	return &Coach{gen: gen}
}

func (c *Coach) Advice(ctx context.Context, prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}
	if c.gen == nil {
		return fallbackAdvice
	}

	text, err := c.gen.Generate(ctx, systemPrompt, prompt, adviceTemperature)
	if err != nil {
		zap.S().Warnw("coach advice", zap.Error(err))
		return fallbackAdvice
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallbackAdvice
	}
	return text
}

func (c *Coach) BreakDown(ctx context.Context, taskTitle string) Breakdown {
	fallback := Breakdown{
		Steps:             []string{"Apenas olhe para a tarefa", "Respire fundo", "Faça por 2 minutos"},
		MotivationalQuote: fallbackQuote,
	}
	if c.gen == nil {
		return fallback
	}

	prompt := fmt.Sprintf("Ajude-me a começar a tarefa: %q. Quebre em 3 micro-passos minúsculos.", taskTitle)

	var out Breakdown
	if err := c.gen.GenerateJSON(ctx, systemPrompt, prompt, breakdownSchema, &out); err != nil {
		zap.S().Warnw("coach break down task", zap.Error(err), zap.String("title", taskTitle))
		return fallback
	}

	steps := make([]string, 0, len(out.Steps))
	for _, step := range out.Steps {
		if step = strings.TrimSpace(step); step != "" {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		return fallback
	}
	out.Steps = steps
	if strings.TrimSpace(out.MotivationalQuote) == "" {
		out.MotivationalQuote = fallbackQuote
	}
	return out
}

func (c *Coach) ProjectPlan(ctx context.Context, goal string) ProjectPlan {
	fallback := ProjectPlan{Name: goal, NextAction: fallbackProject}
	if c.gen == nil {
		return fallback
	}

	prompt := fmt.Sprintf("Crie um projeto para este objetivo: %q. O título deve ser inspirador e a próxima ação deve ser uma micro-etapa de 2 minutos.", goal)

	var out ProjectPlan
	if err := c.gen.GenerateJSON(ctx, systemPrompt, prompt, projectSchema, &out); err != nil {
		zap.S().Warnw("coach project plan", zap.Error(err), zap.String("goal", goal))
		return fallback
	}
	if strings.TrimSpace(out.Name) == "" || strings.TrimSpace(out.NextAction) == "" {
		return fallback
	}
	return out
}

func (c *Coach) HabitPlan(ctx context.Context, goal string) HabitPlan {
	fallback := HabitPlan{Name: goal, MicroAction: fallbackHabit, Icon: fallbackIcon}
	if c.gen == nil {
		return fallback
	}

	prompt := fmt.Sprintf("Sugira um hábito diário para quem quer: %q. O hábito deve ser minúsculo. Escolha um emoji que combine.", goal)

	var out HabitPlan
	if err := c.gen.GenerateJSON(ctx, systemPrompt, prompt, habitSchema, &out); err != nil {
		zap.S().Warnw("coach habit plan", zap.Error(err), zap.String("goal", goal))
		return fallback
	}
	if strings.TrimSpace(out.Name) == "" || strings.TrimSpace(out.MicroAction) == "" {
		return fallback
	}
	if strings.TrimSpace(out.Icon) == "" {
		out.Icon = fallbackIcon
	}
	return out
}

// Insight comments on the user's history. Active days are days with points.
func (c *Coach) Insight(ctx context.Context, history []models.DailyStat) string {
	activeDays, totalFocus := 0, 0
	for _, day := range history {
		if day.Points > 0 {
			activeDays++
		}
		totalFocus += day.FocusMinutes
	}

	prompt := fmt.Sprintf("Analise este progresso de um usuário com TDAH: %d dias ativos, %d minutos de foco. "+
		"Dê um feedback curto, lúdico e muito empático, comparando com um jardim que floresce no seu próprio tempo.",
		activeDays, totalFocus)

	if c.gen == nil {
		return fallbackInsight
	}
	text, err := c.gen.Generate(ctx, systemPrompt, prompt, adviceTemperature)
	if err != nil {
		zap.S().Warnw("coach insight", zap.Error(err))
		return fallbackInsight
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallbackInsight
	}
	return text
}

var breakdownSchema = &gemini.Schema{
	Type: gemini.TypeObject,
	Properties: map[string]*gemini.Schema{
		"steps":             {Type: gemini.TypeArray, Items: &gemini.Schema{Type: gemini.TypeString}},
		"motivationalQuote": {Type: gemini.TypeString},
	},
	Required: []string{"steps", "motivationalQuote"},
}

var projectSchema = &gemini.Schema{
	Type: gemini.TypeObject,
	Properties: map[string]*gemini.Schema{
		"name":       {Type: gemini.TypeString, Description: "Título do projeto"},
		"nextAction": {Type: gemini.TypeString, Description: "A primeira micro-etapa concreta"},
	},
	Required: []string{"name", "nextAction"},
}

var habitSchema = &gemini.Schema{
	Type: gemini.TypeObject,
	Properties: map[string]*gemini.Schema{
		"name":        {Type: gemini.TypeString, Description: "Nome do hábito"},
		"microAction": {Type: gemini.TypeString, Description: "Ação de 1 minuto"},
		"icon":        {Type: gemini.TypeString, Description: "Apenas um emoji"},
	},
	Required: []string{"name", "microAction", "icon"},
}
