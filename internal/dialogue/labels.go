package dialogue

import (
	"strconv"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/textnorm"
)

// Chip labels.
const (
	LabelPageViewed     = "Oui, je l'ai fait"
	LabelPageNotViewed  = "Non, pas encore"
	LabelAcquire        = "Je veux acquérir ce business"
	LabelContact        = "Contacter un conseiller"
	LabelRetryLater     = "Réessayer plus tard"
	LabelUndecided      = "Je ne sais pas encore lequel choisir"
	LabelShowBusinesses = "Voir les business disponibles"
	LabelMoreQuestions  = "J'ai d'autres questions"
	LabelOpenPage       = "Voir la page du business"
	LabelAcquireForm    = "Remplir le formulaire d'acquisition"
)

var aspectLabels = []struct {
	aspect domain.Aspect
	label  string
}{
	{domain.AspectAcquisition, "Comment se passe l'acquisition ?"},
	{domain.AspectProfitability, "Quelle est la rentabilité ?"},
	{domain.AspectSkills, "Quels sont les prérequis ?"},
	{domain.AspectAdvantages, "Quels sont les avantages ?"},
	{domain.AspectPrice, "Quel est le prix ?"},
	{domain.AspectTime, "Combien de temps faut-il y consacrer ?"},
	{domain.AspectSupport, "Quel accompagnement proposez-vous ?"},
}

// budgetChoices are offered to undecided visitors. A zero limit means no limit.
var budgetChoices = []struct {
	label string
	limit int64
}{
	{"Moins de 300 000 FCFA", 300000},
	{"Moins de 600 000 FCFA", 600000},
	{"Plus de 600 000 FCFA", 0},
}

type labelAction struct {
	action domain.Action
	value  string
}

// labelTable maps the folded label of every chip the engine emits to its
// action, for clients that send back only the label.
var labelTable = buildLabelTable()

func buildLabelTable() map[string]labelAction {
	t := map[string]labelAction{
		LabelPageViewed:     {action: domain.ActionPageViewed},
		LabelPageNotViewed:  {action: domain.ActionPageNotViewed},
		LabelAcquire:        {action: domain.ActionAcquire},
		LabelContact:        {action: domain.ActionContact},
		LabelRetryLater:     {action: domain.ActionRetry},
		LabelUndecided:      {action: domain.ActionUndecided},
		LabelShowBusinesses: {action: domain.ActionShowBusinesses},
		LabelMoreQuestions:  {action: domain.ActionMoreQuestions},
		LabelOpenPage:       {action: domain.ActionOpenPage},
		LabelAcquireForm:    {action: domain.ActionOpenPage},
	}
	t["Voir tous les business"] = labelAction{action: domain.ActionShowBusinesses}
	for _, a := range aspectLabels {
		t[a.label] = labelAction{action: domain.ActionAskAspect, value: string(a.aspect)}
	}
	for _, b := range budgetChoices {
		t[b.label] = labelAction{action: domain.ActionChooseBudget, value: strconv.FormatInt(b.limit, 10)}
	}

	folded := make(map[string]labelAction, len(t))
	for label, la := range t {
		folded[textnorm.Fold(label)] = la
	}
	return folded
}

// lookupLabel maps a chip label typed or clicked by the visitor to its action.
func lookupLabel(label string) (labelAction, bool) {
	la, ok := labelTable[textnorm.Fold(label)]
	return la, ok
}

func aspectLabel(a domain.Aspect) string {
	for _, al := range aspectLabels {
		if al.aspect == a {
			return al.label
		}
	}
	return string(a)
}

// aspectChips returns the chips for the first n aspects, skipping exclude.
func aspectChips(business string, n int, exclude domain.Aspect) []domain.Suggestion {
	var out []domain.Suggestion
	for _, al := range aspectLabels {
		if len(out) == n {
			break
		}
		if al.aspect == exclude {
			continue
		}
		out = append(out, domain.Suggestion{
			Label:    al.label,
			Action:   domain.ActionAskAspect,
			Business: business,
			Value:    string(al.aspect),
		})
	}
	return out
}

func businessChips(list []*domain.Business) []domain.Suggestion {
	out := make([]domain.Suggestion, 0, len(list))
	for _, b := range list {
		out = append(out, domain.Suggestion{Label: b.Name, Action: domain.ActionSelectBusiness, Business: b.Name})
	}
	return out
}

func chip(label string, action domain.Action, business string) domain.Suggestion {
	return domain.Suggestion{Label: label, Action: action, Business: business}
}

// chipForLabel tags a free-form label, such as a completion provider
// suggestion, with the action of a known chip.
func chipForLabel(label string) domain.Suggestion {
	if la, ok := lookupLabel(label); ok {
		return domain.Suggestion{Label: label, Action: la.action, Value: la.value}
	}
	return domain.TextSuggestion(label)
}
