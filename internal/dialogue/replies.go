package dialogue

import (
	"fmt"
	"strings"

	"github.com/tekkistudio/tekki-chat/internal/domain"
)

const welcomeText = "Bonjour ! Je suis l'assistant de TEKKI Studio. Je peux vous présenter nos business e-commerce clés en main, " +
	"répondre à vos questions ou vous mettre en relation avec un conseiller. Comment puis-je vous aider ?"

// PageViewedQuestion is asked once a visitor picked a business.
const PageViewedQuestion = "Avez-vous déjà parcouru la page de ce business ?"

// FallbackText is sent when no completion provider answered.
const FallbackText = "Je suis momentanément indisponible. Souhaitez-vous échanger directement avec un conseiller ?"

const (
	generalInterestLimit = 6
	listLimit            = 5
	alternativesLimit    = 3
	descriptionLimit     = 90
)

func fallbackReply() reply {
	return reply{
		content: FallbackText,
		suggestions: []domain.Suggestion{
			chip(LabelContact, domain.ActionContact, ""),
			chip(LabelRetryLater, domain.ActionRetry, ""),
		},
		needsHuman: true,
		filtered:   true,
	}
}

func nudgeReply() reply {
	return reply{
		content: "Je peux aussi vous mettre en relation avec un conseiller TEKKI Studio pour en parler de vive voix. Souhaitez-vous être contacté ?",
		suggestions: []domain.Suggestion{
			chip(LabelContact, domain.ActionContact, ""),
			chip(LabelMoreQuestions, domain.ActionMoreQuestions, ""),
		},
		needsHuman: true,
	}
}

func retryLaterReply() reply {
	return reply{
		content: "D'accord ! Revenez vers moi quand vous le souhaitez. Un conseiller reste joignable à tout moment sur WhatsApp.",
		suggestions: []domain.Suggestion{
			chip(LabelContact, domain.ActionContact, ""),
			chip(LabelShowBusinesses, domain.ActionShowBusinesses, ""),
		},
	}
}

func (c *conv) contact() outcome {
	link := c.device.WhatsAppLink(c.e.whatsApp, "Bonjour TEKKI Studio, je souhaite échanger avec un conseiller.")
	content := "Avec plaisir ! Un conseiller TEKKI Studio vous répond directement sur WhatsApp : " + link +
		"\n\nVous pouvez aussi continuer à me poser vos questions ici."
	return answer(RouteContact, reply{
		content: content,
		suggestions: []domain.Suggestion{
			chip(LabelShowBusinesses, domain.ActionShowBusinesses, ""),
			chip(LabelMoreQuestions, domain.ActionMoreQuestions, c.sess.ActiveBusiness),
		},
	})
}

func (c *conv) selectBusiness(b *domain.Business) outcome {
	c.focus(b, domain.StateAwaitingPageViewed)
	c.advance(domain.StageInterest, domain.FunnelPatch{BusinessesViewed: []string{b.Name}})

	content := fmt.Sprintf("Excellent choix ! %s est un business %s proposé à %s FCFA.\n\n%s",
		b.Name, categoryText(b), domain.FormatAmount(b.Price), PageViewedQuestion)
	return answer(RouteBusinessSelected, reply{
		content: content,
		suggestions: []domain.Suggestion{
			chip(LabelPageViewed, domain.ActionPageViewed, b.Name),
			chip(LabelPageNotViewed, domain.ActionPageNotViewed, b.Name),
		},
	})
}

func (c *conv) generalInterest() outcome {
	c.sess.State = domain.ConversationState{Kind: domain.StateAwaitingBusinessChoice}
	c.advance(domain.StageInterest, domain.FunnelPatch{})

	list := c.e.catalog.Top(generalInterestLimit)
	if len(list) == 0 {
		return answer(RouteGeneralInterest, noBusinessReply())
	}
	chips := append(businessChips(list), chip(LabelUndecided, domain.ActionUndecided, ""))
	return answer(RouteGeneralInterest, reply{
		content:     "Avec plaisir ! Voici les business e-commerce actuellement disponibles. Lequel vous intéresse ?",
		suggestions: chips,
	})
}

func (c *conv) listBusinesses() outcome {
	c.sess.State = domain.ConversationState{Kind: domain.StateAwaitingBusinessChoice}
	c.advance(domain.StageInterest, domain.FunnelPatch{})

	list := c.e.catalog.Top(listLimit)
	if len(list) == 0 {
		return answer(RouteBusinessList, noBusinessReply())
	}
	var b strings.Builder
	b.WriteString("Voici nos business disponibles :\n")
	writeBusinessLines(&b, list)
	b.WriteString("\nLequel souhaitez-vous découvrir ?")

	chips := append(businessChips(list), chip(LabelUndecided, domain.ActionUndecided, ""))
	return answer(RouteBusinessList, reply{content: b.String(), suggestions: chips})
}

func (c *conv) unknownBusiness(name string) outcome {
	c.sess.State = domain.ConversationState{Kind: domain.StateAwaitingBusinessChoice}

	list := c.e.catalog.Top(alternativesLimit)
	var b strings.Builder
	fmt.Fprintf(&b, "Je ne trouve pas « %s » parmi nos business disponibles.", strings.TrimSpace(name))
	if len(list) == 0 {
		return answer(RouteUnknownBusiness, reply{
			content:     b.String() + " Un conseiller peut vous informer des prochaines disponibilités.",
			suggestions: []domain.Suggestion{chip(LabelContact, domain.ActionContact, "")},
		})
	}
	b.WriteString(" Voici ceux que nous proposons en ce moment :\n")
	writeBusinessLines(&b, list)

	chips := append(businessChips(list), chip("Voir tous les business", domain.ActionShowBusinesses, ""))
	return answer(RouteUnknownBusiness, reply{content: b.String(), suggestions: chips})
}

func noBusinessReply() reply {
	return reply{
		content: "Tous nos business ont trouvé preneur pour le moment. Un conseiller peut vous prévenir dès qu'un nouveau business est disponible.",
		suggestions: []domain.Suggestion{
			chip(LabelContact, domain.ActionContact, ""),
		},
	}
}

func (c *conv) pageViewed(b *domain.Business) outcome {
	c.focus(b, domain.StateAwaitingAspectChoice)
	c.advance(domain.StageConsideration, domain.FunnelPatch{BusinessesViewed: []string{b.Name}})

	return answer(RoutePageViewed, reply{
		content:     fmt.Sprintf("Parfait ! Que souhaitez-vous savoir de plus sur %s ?", b.Name),
		suggestions: aspectChips(b.Name, 4, ""),
	})
}

func (c *conv) pageNotViewed(b *domain.Business) outcome {
	c.focus(b, domain.StateAwaitingAspectChoice)
	c.advance(domain.StageInterest, domain.FunnelPatch{BusinessesViewed: []string{b.Name}})

	content := fmt.Sprintf("Je vous invite à découvrir la page de %s : vous y trouverez la présentation complète, "+
		"les chiffres clés et ce qui est inclus. Je reste disponible pour répondre à vos questions.", b.Name)
	chips := []domain.Suggestion{
		{Label: LabelOpenPage, Action: domain.ActionOpenPage, Business: b.Name, Value: b.PagePath(c.e.pagePath)},
	}
	return answer(RoutePageNotViewed, reply{content: content, suggestions: append(chips, aspectChips(b.Name, 3, "")...)})
}

func (c *conv) openPage(b *domain.Business) outcome {
	c.focus(b, domain.StateAwaitingAspectChoice)
	c.advance(domain.StageInterest, domain.FunnelPatch{BusinessesViewed: []string{b.Name}})

	return answer(RouteOpenPage, reply{
		content:     fmt.Sprintf("Bonne découverte ! La page de %s est ici : %s\n\nRevenez vers moi si vous avez des questions.", b.Name, b.PagePath(c.e.pagePath)),
		suggestions: aspectChips(b.Name, 4, ""),
	})
}

var aspectTopics = map[domain.Aspect]string{
	domain.AspectPrice:         domain.TopicPrice,
	domain.AspectProfitability: domain.TopicProfitability,
	domain.AspectTime:          domain.TopicTime,
	domain.AspectSkills:        domain.TopicExperience,
	domain.AspectSupport:       domain.TopicSupport,
}

func (c *conv) aspectAnswer(b *domain.Business, aspect domain.Aspect) outcome {
	c.focus(b, domain.StateAwaitingAspectChoice)
	patch := domain.FunnelPatch{BusinessesViewed: []string{b.Name}}
	if topic, ok := aspectTopics[aspect]; ok {
		patch.TopicsDiscussed = []string{topic}
	}
	c.advance(domain.StageConsideration, patch)

	chips := []domain.Suggestion{chip(LabelAcquire, domain.ActionAcquire, b.Name)}
	chips = append(chips, aspectChips(b.Name, 3, aspect)...)
	return answer(RouteAspect, reply{content: aspectText(b, aspect), suggestions: chips})
}

func aspectText(b *domain.Business, aspect domain.Aspect) string {
	weekly := b.TimeRequiredWeekly
	if weekly == "" {
		weekly = "quelques heures par semaine"
	}

	switch aspect {
	case domain.AspectPrice:
		return fmt.Sprintf("%s est proposé à %s FCFA. Ce prix comprend la boutique en ligne clé en main et l'accompagnement au démarrage.",
			b.Name, domain.FormatAmount(b.Price))
	case domain.AspectProfitability:
		text := fmt.Sprintf("%s a un potentiel estimé à %s FCFA de chiffre d'affaires par mois.",
			b.Name, domain.FormatAmount(b.MonthlyPotential))
		if b.ROIEstimationMonths != nil && *b.ROIEstimationMonths > 0 {
			text += fmt.Sprintf(" Le retour sur investissement est estimé à environ %d mois.", *b.ROIEstimationMonths)
		}
		return text + " Ces chiffres dépendent bien sûr de votre implication."
	case domain.AspectTime:
		return fmt.Sprintf("Gérer %s demande environ %s. Vous pouvez tout à fait le faire en parallèle d'une autre activité.", b.Name, weekly)
	case domain.AspectSkills:
		return fmt.Sprintf("Aucune compétence technique n'est requise pour %s : nous vous formons à la gestion de la boutique, "+
			"au marketing et à la relation client. Prévoyez %s.", b.Name, weekly)
	case domain.AspectSupport:
		return fmt.Sprintf("Avec %s, TEKKI Studio vous accompagne : formation à la prise en main, conseils marketing et suivi après le lancement.", b.Name)
	case domain.AspectAcquisition:
		return fmt.Sprintf("L'acquisition de %s se fait en 4 étapes :\n1. Vous confirmez votre intérêt\n2. Un conseiller échange avec vous\n"+
			"3. Vous réglez le prix de %s FCFA\n4. Nous vous transférons le business et vous formons", b.Name, domain.FormatAmount(b.Price))
	case domain.AspectAdvantages:
		if len(b.Benefits) == 0 {
			return fmt.Sprintf("%s est un business clé en main : boutique prête à vendre, fournisseurs identifiés et accompagnement au lancement.", b.Name)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Les avantages de %s :", b.Name)
		for _, benefit := range b.Benefits {
			sb.WriteString("\n• " + benefit)
		}
		return sb.String()
	default:
		return fmt.Sprintf("%s : %s", b.Name, b.Description)
	}
}

func (c *conv) acquire(b *domain.Business) outcome {
	c.focus(b, domain.StateAwaitingAcquisition)
	yes := true
	decision := domain.StageDecision
	c.tracker.Apply(domain.FunnelPatch{Stage: &decision, BusinessesViewed: []string{b.Name}, ReadyToBuy: &yes})

	link := c.device.WhatsAppLink(c.e.whatsApp, "Bonjour TEKKI Studio, je souhaite acquérir "+b.Name+".")
	content := fmt.Sprintf("Excellente décision ! Pour acquérir %s (%s FCFA), remplissez le formulaire d'acquisition sur sa page "+
		"ou échangez directement avec un conseiller sur WhatsApp : %s", b.Name, domain.FormatAmount(b.Price), link)
	return answer(RouteAcquire, reply{
		content: content,
		suggestions: []domain.Suggestion{
			{Label: LabelAcquireForm, Action: domain.ActionOpenPage, Business: b.Name, Value: b.PagePath(c.e.pagePath) + "#acquisition"},
			chip(LabelContact, domain.ActionContact, b.Name),
		},
	})
}

func (c *conv) askBudget() outcome {
	c.sess.State = domain.ConversationState{Kind: domain.StateAwaitingBudget}
	c.advance(domain.StageInterest, domain.FunnelPatch{})

	chips := make([]domain.Suggestion, 0, len(budgetChoices))
	for _, b := range budgetChoices {
		chips = append(chips, domain.Suggestion{Label: b.label, Action: domain.ActionChooseBudget, Value: formatLimit(b.limit)})
	}
	return answer(RouteBudget, reply{
		content:     "Pas de souci, je vais vous aider à choisir ! Quel budget envisagez-vous pour votre business ?",
		suggestions: chips,
	})
}

func (c *conv) recommend(budget int64) outcome {
	c.sess.State = domain.ConversationState{Kind: domain.StateAwaitingBusinessChoice}
	c.advance(domain.StageConsideration, domain.FunnelPatch{TopicsDiscussed: []string{domain.TopicPrice}})

	if b := c.e.catalog.Recommend(budget, "", ""); b != nil {
		content := fmt.Sprintf("Avec ce budget, je vous recommande %s : %s\nIl est proposé à %s FCFA avec un potentiel de %s FCFA par mois.",
			b.Name, shorten(b.Description, descriptionLimit), domain.FormatAmount(b.Price), domain.FormatAmount(b.MonthlyPotential))
		return answer(RouteRecommendation, reply{
			content: content,
			suggestions: []domain.Suggestion{
				{Label: "En savoir plus sur " + b.Name, Action: domain.ActionSelectBusiness, Business: b.Name},
				chip("Voir tous les business", domain.ActionShowBusinesses, ""),
			},
		})
	}

	list := c.e.catalog.Cheapest(alternativesLimit)
	if len(list) == 0 {
		return answer(RouteRecommendation, noBusinessReply())
	}
	var sb strings.Builder
	sb.WriteString("Aucun business ne correspond exactement à ce budget pour le moment. Voici les plus accessibles :\n")
	writeBusinessLines(&sb, list)
	return answer(RouteRecommendation, reply{
		content:     sb.String(),
		suggestions: append(businessChips(list), chip(LabelContact, domain.ActionContact, "")),
	})
}

func (c *conv) moreQuestions(b *domain.Business) outcome {
	if b == nil {
		c.sess.State = domain.Idle()
		return answer(RouteMoreQuestions, reply{
			content: "Bien sûr ! Posez-moi votre question, je suis là pour vous aider.",
			suggestions: []domain.Suggestion{
				chip(LabelShowBusinesses, domain.ActionShowBusinesses, ""),
				chip(LabelContact, domain.ActionContact, ""),
			},
		})
	}
	c.focus(b, domain.StateAwaitingAspectChoice)
	return answer(RouteMoreQuestions, reply{
		content:     fmt.Sprintf("Bien sûr ! Que voulez-vous savoir sur %s ?", b.Name),
		suggestions: aspectChips(b.Name, 4, ""),
	})
}

func writeBusinessLines(sb *strings.Builder, list []*domain.Business) {
	for _, b := range list {
		fmt.Fprintf(sb, "• %s : %s FCFA", b.Name, domain.FormatAmount(b.Price))
		if d := shorten(b.Description, descriptionLimit); d != "" {
			sb.WriteString(". " + d)
		}
		sb.WriteString("\n")
	}
}

func categoryText(b *domain.Business) string {
	if b.Category == "" {
		return "e-commerce"
	}
	return "e-commerce " + strings.ToLower(b.Category)
}

func shorten(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	cut := strings.TrimSpace(string(r[:limit]))
	if i := strings.LastIndex(cut, " "); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, ",;:.") + "…"
}
