package funnel

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tekkistudio/tekki-chat/internal/clock"
	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/textnorm"
)

type recordingSink struct {
	snaps []domain.FunnelSnapshot
}

func (s *recordingSink) RecordSnapshot(snap domain.FunnelSnapshot) {
	s.snaps = append(s.snaps, snap)
}

type nameResolver []string

func (r nameResolver) Resolve(name string) *domain.Business {
	for _, n := range r {
		if textnorm.Contains(name, n) {
			return &domain.Business{Name: n, Status: domain.BusinessStatusAvailable}
		}
	}
	return nil
}

func newTracker(opts ...Option) (*Tracker, *domain.ConversionFunnel) {
	f := &domain.ConversionFunnel{}
	opts = append([]Option{WithClock(clock.NewMock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))}, opts...)
	return New(f, opts...), f
}

func TestNew_InitializesAwareness(t *testing.T) {
	_, f := newTracker()
	assert.Equal(t, domain.StageAwareness, f.Stage)
	assert.Empty(t, f.TopicsDiscussed)
	assert.False(t, f.ReadyToBuy)
}

func TestUpdateText_Topics(t *testing.T) {
	tr, f := newTracker()

	tr.UpdateText("Combien ça coûte et quelle rentabilité ?", true)
	tr.UpdateText("Le prix est de 450 000 FCFA", false)

	assert.Equal(t, []string{domain.TopicPrice, domain.TopicProfitability}, f.TopicsDiscussed)
}

func TestUpdateText_ObjectionsOnlyOnUserTurns(t *testing.T) {
	tr, f := newTracker()

	tr.UpdateText("Beaucoup pensent que c'est trop cher, mais c'est rentable", false)
	assert.Empty(t, f.Objections)

	tr.UpdateText("C'est trop cher pour moi et je n'ai pas le temps", true)
	assert.ElementsMatch(t, []string{domain.ObjectionPrice, domain.ObjectionTime}, f.Objections)

	tr.UpdateText("toujours trop cher", true)
	assert.Len(t, f.Objections, 2)
}

func TestUpdateText_StagePrecedence(t *testing.T) {
	tests := []struct {
		text string
		want domain.Stage
	}{
		{"Bonjour", domain.StageAwareness},
		{"Je voudrais plus d'infos", domain.StageInterest},
		{"Quel est le prix ?", domain.StageConsideration},
		{"Je suis prêt, je veux acheter. Quel est le prix ?", domain.StageDecision},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			tr, f := newTracker()
			tr.UpdateText(tt.text, true)
			assert.Equal(t, tt.want, f.Stage)
		})
	}
}

func TestUpdateText_AssistantTurnsDoNotMoveStage(t *testing.T) {
	tr, f := newTracker()
	tr.UpdateText("Vous pouvez acheter ce business dès aujourd'hui", false)
	assert.Equal(t, domain.StageAwareness, f.Stage)
	assert.False(t, f.ReadyToBuy)
}

func TestUpdateText_StageNeverRegresses(t *testing.T) {
	inputs := []string{
		"Bonjour",
		"plus d'infos svp",
		"combien ça coûte ?",
		"je veux acheter",
		"quels avantages ?",
		"le prix ?",
		"merci",
		"je suis prête",
	}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		tr, f := newTracker()
		prev := f.Stage
		for i := 0; i < 20; i++ {
			tr.UpdateText(inputs[rng.Intn(len(inputs))], rng.Intn(2) == 0)
			require.GreaterOrEqual(t, f.Stage.Rank(), prev.Rank(), "stage regressed")
			prev = f.Stage
		}
	}
}

func TestReadyToBuyIsSticky(t *testing.T) {
	tr, f := newTracker()

	tr.UpdateText("Je veux acheter ce business", true)
	require.True(t, f.ReadyToBuy)

	no := false
	tr.Apply(domain.FunnelPatch{ReadyToBuy: &no})
	tr.Apply(domain.StagePatch(domain.StageInterest))
	tr.UpdateText("finalement je ne sais pas", true)

	assert.True(t, f.ReadyToBuy)
}

func TestApply_MergesVerbatim(t *testing.T) {
	tr, f := newTracker()

	yes := true
	changed := tr.Apply(domain.FunnelPatch{
		Stage:            ptr(domain.StageDecision),
		BusinessesViewed: []string{"Glow Shop", "glow shop", "Kaolack Chic"},
		TopicsDiscussed:  []string{domain.TopicPrice},
		ReadyToBuy:       &yes,
	})
	require.True(t, changed)
	assert.Equal(t, domain.StageDecision, f.Stage)
	assert.Equal(t, []string{"Glow Shop", "Kaolack Chic"}, f.BusinessesViewed)
	assert.True(t, f.ReadyToBuy)

	// An explicit patch may reset the stage.
	tr.Apply(domain.StagePatch(domain.StageInterest))
	assert.Equal(t, domain.StageInterest, f.Stage)

	assert.False(t, tr.Apply(domain.FunnelPatch{BusinessesViewed: []string{"Glow Shop"}}))
}

func TestUpdateText_BusinessMentions(t *testing.T) {
	tr, f := newTracker(WithResolver(nameResolver{"Glow Shop", "Kaolack Chic"}))

	tr.UpdateText("Parlez-moi du business Glow Shop.", true)
	tr.UpdateText("Et la boutique de Kaolack Chic ?", true)
	tr.UpdateText("Le business Glow Shop encore", true)
	tr.UpdateText("Le business Inexistant", true)

	assert.Equal(t, []string{"Glow Shop", "Kaolack Chic"}, f.BusinessesViewed)
}

func TestUpdateText_MentionsStayWithinOneListItem(t *testing.T) {
	tr, f := newTracker(WithResolver(nameResolver{"Glow Shop", "Kaolack Chic"}))

	list := "Je ne trouve pas « Business Fantôme » parmi nos business disponibles. Voici ceux que nous proposons en ce moment :\n" +
		"• Glow Shop : 450 000 FCFA. Boutique de cosmétiques naturels\n" +
		"• Kaolack Chic : 300 000 FCFA. Prêt-à-porter féminin\n"
	tr.UpdateText(list, false)
	assert.Empty(t, f.BusinessesViewed)

	tr.UpdateText("Boutique de cosmétiques • Kaolack Chic", true)
	assert.Empty(t, f.BusinessesViewed)

	tr.UpdateText("Une question :\nla boutique de Kaolack Chic livre-t-elle ?", true)
	assert.Equal(t, []string{"Kaolack Chic"}, f.BusinessesViewed)
}

func TestSnapshots_OnlyForMaterialNonTrivialChanges(t *testing.T) {
	sink := &recordingSink{}
	tr, _ := newTracker(WithSink("sess-1", sink))
	tr.SetURL("/business/glow-shop")

	tr.UpdateText("Bonjour", true)
	assert.Empty(t, sink.snaps, "trivial funnel must not be persisted")

	tr.UpdateText("Quel est le prix ?", true)
	require.Len(t, sink.snaps, 1)
	snap := sink.snaps[0]
	assert.Equal(t, "sess-1", snap.SessionID)
	assert.Equal(t, domain.StageConsideration, snap.Stage)
	assert.Equal(t, "/business/glow-shop", snap.URL)

	// Same content again: nothing new to persist.
	tr.UpdateText("Quel est le prix ?", true)
	assert.Len(t, sink.snaps, 1)
}

func TestStageHook(t *testing.T) {
	var reached []domain.Stage
	tr, _ := newTracker(WithStageHook(func(s domain.Stage) { reached = append(reached, s) }))

	tr.UpdateText("plus d'infos", true)
	tr.UpdateText("je veux acheter", true)
	tr.Apply(domain.StagePatch(domain.StageInterest))

	assert.Equal(t, []domain.Stage{domain.StageInterest, domain.StageDecision}, reached)
}

func ptr[T any](v T) *T { return &v }
