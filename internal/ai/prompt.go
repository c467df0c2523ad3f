package ai

import (
	"fmt"
	"strings"

	"github.com/tekkistudio/tekki-chat/internal/domain"
)

// BusinessLister exposes the available businesses to the prompt.
type BusinessLister interface {
	Available() []*domain.Business
}

// PromptBuilder renders the system prompt for the model providers.
type PromptBuilder struct {
	catalog BusinessLister
	// maxBusinesses bounds the catalog excerpt.
	maxBusinesses int
}

// NewPromptBuilder creates a builder. catalog may be nil.
func NewPromptBuilder(catalog BusinessLister) *PromptBuilder {
	return &PromptBuilder{catalog: catalog, maxBusinesses: 12}
}

const basePrompt = `Tu es l'assistant commercial de TEKKI Studio, une entreprise qui vend des business e-commerce clés en main au Sénégal.
Réponds en français, de façon chaleureuse, concise (4 phrases maximum) et honnête. N'invente jamais un business, un prix ou un chiffre.
Si la question dépasse tes connaissances ou si le visiteur veut parler à quelqu'un, indique needs_human à true.

Réponds UNIQUEMENT avec un objet JSON de la forme :
{"content": "ta réponse", "suggestions": ["2 à 4 réponses rapides courtes"], "needs_human": false}
`

// System returns the system prompt for req.
func (p *PromptBuilder) System(req *CompletionRequest) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if req.Context.Page != "" || req.Context.URL != "" {
		fmt.Fprintf(&b, "\nPage consultée : %s (%s)\n", req.Context.Page, req.Context.URL)
	}

	if f := req.ConversionState; f != nil {
		fmt.Fprintf(&b, "\nÉtape du visiteur : %s", f.Stage)
		if len(f.BusinessesViewed) > 0 {
			fmt.Fprintf(&b, "\nBusiness consultés : %s", strings.Join(f.BusinessesViewed, ", "))
		}
		if len(f.TopicsDiscussed) > 0 {
			fmt.Fprintf(&b, "\nSujets abordés : %s", strings.Join(f.TopicsDiscussed, ", "))
		}
		if len(f.Objections) > 0 {
			fmt.Fprintf(&b, "\nObjections : %s", strings.Join(f.Objections, ", "))
		}
		if f.ReadyToBuy {
			b.WriteString("\nLe visiteur a exprimé son intention d'acheter : propose-lui de passer à l'acquisition.")
		}
		b.WriteString("\n")
	}

	if p.catalog != nil {
		list := p.catalog.Available()
		if len(list) > p.maxBusinesses {
			list = list[:p.maxBusinesses]
		}
		if len(list) > 0 {
			b.WriteString("\nBusiness disponibles :\n")
			for _, biz := range list {
				fmt.Fprintf(&b, "- %s (%s) : %s FCFA, potentiel %s FCFA/mois. %s\n",
					biz.Name, biz.Category, domain.FormatAmount(biz.Price), domain.FormatAmount(biz.MonthlyPotential), biz.Description)
			}
		}
	}

	return b.String()
}
