package dialogue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tekkistudio/tekki-chat/internal/ai"
	"github.com/tekkistudio/tekki-chat/internal/catalog"
	"github.com/tekkistudio/tekki-chat/internal/clock"
	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
	"github.com/tekkistudio/tekki-chat/internal/faq"
)

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"
)

var homePage = domain.PageContext{Page: "Accueil", URL: "/"}

func fixtureBusinesses() []*domain.Business {
	roi := 6
	return []*domain.Business{
		{
			ID: uuid.New(), Name: "Glow Shop", Slug: "glow-shop", Category: "Beauté",
			Description: "Boutique de cosmétiques naturels", Price: 450000, MonthlyPotential: 150000,
			Status: domain.BusinessStatusAvailable, ROIEstimationMonths: &roi, TimeRequiredWeekly: "10-15h/semaine",
			Benefits: []string{"Fournisseurs identifiés", "Clientèle fidèle"},
		},
		{
			ID: uuid.New(), Name: "Kaolack Chic", Slug: "kaolack-chic", Category: "Mode",
			Description: "Prêt-à-porter féminin", Price: 300000, MonthlyPotential: 90000,
			Status: domain.BusinessStatusAvailable, TimeRequiredWeekly: "5h/semaine",
		},
		{
			ID: uuid.New(), Name: "Dakar Délices", Slug: "dakar-delices", Category: "Alimentation",
			Description: "Épicerie fine en ligne", Price: 650000, MonthlyPotential: 200000,
			Status: domain.BusinessStatusAvailable,
		},
		{
			ID: uuid.New(), Name: "Vieux Business", Slug: "vieux-business", Price: 100000,
			Status: domain.BusinessStatusSold,
		},
	}
}

type stubCompleter struct {
	mu    sync.Mutex
	resp  *ai.CompletionResponse
	err   error
	calls []*ai.CompletionRequest
}

func (s *stubCompleter) Name() string { return "stub" }

func (s *stubCompleter) Complete(_ context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return s.resp, s.err
}

type recordingSink struct {
	mu        sync.Mutex
	turns     []domain.ConversationRecord
	snapshots []domain.FunnelSnapshot
}

func (r *recordingSink) RecordTurn(rec domain.ConversationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, rec)
}

func (r *recordingSink) RecordSnapshot(snap domain.FunnelSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snap)
}

type harness struct {
	engine    *Engine
	completer *stubCompleter
	sink      *recordingSink
	clock     *clock.Mock
	catalog   *catalog.Catalog
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	cat := catalog.New(nil, nil, nil)
	cat.SetAll(fixtureBusinesses())

	h := &harness{
		completer: &stubCompleter{resp: &ai.CompletionResponse{Content: "Réponse du modèle", Suggestions: []string{}}},
		sink:      &recordingSink{},
		clock:     clock.NewMock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		catalog:   cat,
	}
	cfg := Config{
		Catalog:            cat,
		Completer:          h.completer,
		Snapshots:          h.sink,
		Turns:              h.sink,
		Clock:              h.clock,
		WhatsAppNumber:     "221781362728",
		BusinessesPagePath: "/business",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.engine = NewEngine(cfg)
	return h
}

func (h *harness) say(sess *domain.Session, text string) []domain.Message {
	return h.engine.HandleUserInput(context.Background(), sess, text, homePage)
}

func (h *harness) click(sess *domain.Session, s domain.Suggestion) []domain.Message {
	return h.engine.Handle(context.Background(), sess, Input{
		Text: s.Label, Action: s.Action, Business: s.Business, Value: s.Value, Page: homePage,
	})
}

func only(t *testing.T, msgs []domain.Message) domain.Message {
	t.Helper()
	require.Len(t, msgs, 1)
	return msgs[0]
}

func findChip(t *testing.T, m domain.Message, label string) domain.Suggestion {
	t.Helper()
	for _, s := range m.Suggestions {
		if s.Label == label {
			return s
		}
	}
	t.Fatalf("no chip %q in %v", label, domain.Labels(m.Suggestions))
	return domain.Suggestion{}
}

func TestNewSession_Welcome(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	require.Len(t, sess.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, sess.Messages[0].Role)
	assert.Equal(t, domain.StageAwareness, sess.Funnel.Stage)
	assert.Equal(t, domain.StateIdle, sess.State.Kind)
	assert.NotEmpty(t, sess.Messages[0].Suggestions)
}

func TestScenario_GeneralInterest(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	m := only(t, h.say(sess, "Je suis intéressé par un business"))

	labels := domain.Labels(m.Suggestions)
	assert.Equal(t, []string{"Glow Shop", "Kaolack Chic", "Dakar Délices", LabelUndecided}, labels)
	assert.LessOrEqual(t, len(labels)-1, 6)
	assert.NotContains(t, labels, "Vieux Business")
	assert.GreaterOrEqual(t, sess.Funnel.Stage.Rank(), domain.StageInterest.Rank())
	assert.Equal(t, domain.StateAwaitingBusinessChoice, sess.State.Kind)
	assert.Empty(t, h.completer.calls)
}

func TestScenario_SelectBusinessThenPageViewed(t *testing.T) {
	tests := []struct {
		name   string
		choose func(h *harness, sess *domain.Session, list domain.Message) []domain.Message
	}{
		{"typed name", func(h *harness, sess *domain.Session, _ domain.Message) []domain.Message {
			return h.say(sess, "glow shop")
		}},
		{"chip with action", func(h *harness, sess *domain.Session, list domain.Message) []domain.Message {
			return h.click(sess, findChip(t, list, "Glow Shop"))
		}},
		{"chip label only", func(h *harness, sess *domain.Session, _ domain.Message) []domain.Message {
			return h.say(sess, "Glow Shop")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sess := h.engine.NewSession("s1", desktopUA)
			list := only(t, h.say(sess, "Je suis intéressé par un business"))

			asked := only(t, tt.choose(h, sess, list))
			assert.Contains(t, asked.Content, PageViewedQuestion)
			assert.Equal(t, []string{LabelPageViewed, LabelPageNotViewed}, domain.Labels(asked.Suggestions))
			assert.Equal(t, "Glow Shop", sess.ActiveBusiness)
			assert.Equal(t, domain.About(domain.StateAwaitingPageViewed, "Glow Shop"), sess.State)
			assert.Contains(t, sess.Funnel.BusinessesViewed, "Glow Shop")

			// Scenario 3: the visitor says they saw the page.
			viewed := only(t, h.say(sess, "Oui, je l'ai fait"))
			assert.Contains(t, viewed.Content, "Glow Shop")
			require.Len(t, viewed.Suggestions, 4)
			var aspects []string
			for _, s := range viewed.Suggestions {
				assert.Equal(t, domain.ActionAskAspect, s.Action)
				assert.Equal(t, "Glow Shop", s.Business)
				aspects = append(aspects, s.Value)
			}
			assert.Equal(t, []string{"acquisition", "profitability", "skills", "advantages"}, aspects)
			assert.Equal(t, domain.StageConsideration, sess.Funnel.Stage)
		})
	}
}

func TestScenario_CompletionHTTP500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newHarness(t, func(cfg *Config) {
		cfg.Completer = ai.NewHTTPCompleter(srv.URL, time.Second, ai.Options{})
	})
	sess := h.engine.NewSession("s1", desktopUA)
	before := len(sess.Messages)

	replies := h.say(sess, "Est-ce que vous livrez à Thiès ?")

	m := only(t, replies)
	assert.Contains(t, m.Content, "momentanément indisponible")
	assert.Equal(t, []string{"Contacter un conseiller", "Réessayer plus tard"}, domain.Labels(m.Suggestions))
	assert.Len(t, sess.Messages, before+2)
}

func TestScenario_UnknownBusiness(t *testing.T) {
	for _, text := range []string{"Business Fantôme", "En savoir plus sur Business Fantôme", "Quel est le prix du business Fantôme ?"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t)
			sess := h.engine.NewSession("s1", desktopUA)

			m := only(t, h.say(sess, text))

			assert.Contains(t, m.Content, "Je ne trouve pas")
			var businesses []string
			for _, s := range m.Suggestions {
				if s.Action == domain.ActionSelectBusiness {
					businesses = append(businesses, s.Business)
				}
			}
			assert.Equal(t, []string{"Glow Shop", "Kaolack Chic", "Dakar Délices"}, businesses)
			assert.Empty(t, sess.ActiveBusiness)
			assert.NotContains(t, sess.Funnel.BusinessesViewed, "Business Fantôme")
			assert.Empty(t, h.completer.calls)
		})
	}
}

func TestListRepliesDoNotMarkBusinessesViewed(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	h.say(sess, "Business Fantôme")
	assert.Empty(t, sess.Funnel.BusinessesViewed)

	h.say(sess, "En savoir plus sur Vieux Business")
	assert.Empty(t, sess.Funnel.BusinessesViewed)

	list := only(t, h.say(sess, "Quels business avez-vous ?"))
	require.Contains(t, list.Content, "Boutique de cosmétiques naturels")
	assert.Empty(t, sess.Funnel.BusinessesViewed)
}

func TestSoldBusinessIsNeverOffered(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	m := only(t, h.click(sess, domain.Suggestion{Label: "Vieux Business", Action: domain.ActionSelectBusiness, Business: "Vieux Business"}))
	assert.Contains(t, m.Content, "Je ne trouve pas")
	assert.Empty(t, sess.ActiveBusiness)

	list := only(t, h.say(sess, "Quels business avez-vous ?"))
	assert.NotContains(t, list.Content, "Vieux Business")
}

func TestContactRequest(t *testing.T) {
	t.Run("desktop gets wa.me link", func(t *testing.T) {
		h := newHarness(t)
		sess := h.engine.NewSession("s1", desktopUA)
		m := only(t, h.say(sess, "Je voudrais parler à un conseiller"))
		assert.Contains(t, m.Content, "https://wa.me/221781362728")
		assert.Empty(t, h.completer.calls)
	})

	t.Run("mobile gets deep link", func(t *testing.T) {
		h := newHarness(t)
		sess := h.engine.NewSession("s1", iphoneUA)
		m := only(t, h.say(sess, "je veux parler à un humain"))
		assert.Contains(t, m.Content, "whatsapp://send?phone=221781362728")
	})
}

func TestHandleAction_Contact(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	m := only(t, h.engine.HandleAction(context.Background(), sess, domain.ActionContact, "", "", homePage))
	assert.Contains(t, m.Content, "https://wa.me/221781362728")
	require.Len(t, sess.Messages, 3)
	assert.Equal(t, domain.RoleUser, sess.Messages[1].Role)
	assert.NotEmpty(t, sess.Messages[1].Content, "action turns get a visitor message text")
}

func TestBusinessListRequest(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	m := only(t, h.say(sess, "Quels sont vos business disponibles ?"))
	assert.Contains(t, m.Content, "• Glow Shop : 450 000 FCFA")
	assert.Contains(t, m.Content, "• Kaolack Chic : 300 000 FCFA")
	assert.Empty(t, sess.Funnel.BusinessesViewed, "listing does not count as viewing")
}

func TestAspectQuery(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	m := only(t, h.say(sess, "Quel est le prix du business Kaolack Chic ?"))
	assert.Contains(t, m.Content, "300 000 FCFA")
	assert.Equal(t, "Kaolack Chic", sess.ActiveBusiness)
	assert.Contains(t, sess.Funnel.TopicsDiscussed, domain.TopicPrice)
	assert.Equal(t, LabelAcquire, m.Suggestions[0].Label)
	for _, s := range m.Suggestions {
		assert.NotEqual(t, string(domain.AspectPrice), s.Value, "asked aspect is not offered again")
	}
}

func TestAspectQuery_AboutCurrentBusiness(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)
	h.say(sess, "Glow Shop")

	m := only(t, h.say(sess, "Combien de temps pour ce business ?"))
	assert.Contains(t, m.Content, "10-15h/semaine")
	assert.Contains(t, sess.Funnel.TopicsDiscussed, domain.TopicTime)
}

func TestAspectAnswers(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)
	h.say(sess, "Glow Shop")

	tests := []struct {
		aspect domain.Aspect
		want   string
	}{
		{domain.AspectProfitability, "6 mois"},
		{domain.AspectAdvantages, "Fournisseurs identifiés"},
		{domain.AspectAcquisition, "4 étapes"},
		{domain.AspectSkills, "Aucune compétence technique"},
		{domain.AspectSupport, "accompagne"},
	}
	for _, tt := range tests {
		t.Run(string(tt.aspect), func(t *testing.T) {
			m := only(t, h.click(sess, domain.Suggestion{Action: domain.ActionAskAspect, Value: string(tt.aspect)}))
			assert.Contains(t, m.Content, tt.want)
			assert.Contains(t, m.Content, "Glow Shop")
		})
	}
}

func TestAcquire(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)
	h.say(sess, "Kaolack Chic")

	m := only(t, h.say(sess, "Je veux acquérir ce business"))

	assert.Contains(t, m.Content, "Kaolack Chic")
	assert.Contains(t, m.Content, "wa.me")
	assert.True(t, sess.Funnel.ReadyToBuy)
	assert.Equal(t, domain.StageDecision, sess.Funnel.Stage)
	assert.Equal(t, domain.About(domain.StateAwaitingAcquisition, "Kaolack Chic"), sess.State)
	form := findChip(t, m, LabelAcquireForm)
	assert.Equal(t, "/business/kaolack-chic#acquisition", form.Value)
}

func TestPageNotViewed_OffersPageLink(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)
	asked := only(t, h.say(sess, "Dakar Délices"))

	m := only(t, h.click(sess, findChip(t, asked, LabelPageNotViewed)))
	page := findChip(t, m, LabelOpenPage)
	assert.Equal(t, domain.ActionOpenPage, page.Action)
	assert.Equal(t, "/business/dakar-delices", page.Value)
}

func TestUndecidedBudgetFlow(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)
	list := only(t, h.say(sess, "Je suis intéressé par un business"))

	budget := only(t, h.click(sess, findChip(t, list, LabelUndecided)))
	assert.Equal(t, domain.StateAwaitingBudget, sess.State.Kind)
	require.Len(t, budget.Suggestions, 3)

	rec := only(t, h.click(sess, findChip(t, budget, "Moins de 300 000 FCFA")))
	assert.Contains(t, rec.Content, "je vous recommande Kaolack Chic")
	assert.Equal(t, "Kaolack Chic", findChip(t, rec, "En savoir plus sur Kaolack Chic").Business)
}

func TestBudgetTypedAsText(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)
	h.say(sess, LabelUndecided)

	m := only(t, h.say(sess, "environ 200 000 FCFA"))
	assert.Contains(t, m.Content, "Aucun business ne correspond")
	assert.Equal(t, "Kaolack Chic", m.Suggestions[0].Business, "cheapest first")
	assert.Empty(t, h.completer.calls)
}

func TestParseBudget(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"500 000 FCFA", 500000, true},
		{"500000", 500000, true},
		{"500k", 500000, true},
		{"300 mille", 300000, true},
		{"1,5 million", 1500000, true},
		{"300", 300000, true},
		{"J'ai 2 enfants et 500 000 FCFA", 500000, true},
		{"Mon budget est de 400 000, pour 3 associés", 400000, true},
		{"entre 200 et 350 mille", 350000, true},
		{"aucune idée", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseBudget(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompletion_RequestAndSuggestions(t *testing.T) {
	h := newHarness(t)
	h.completer.resp = &ai.CompletionResponse{
		Content:     "Oui, nous livrons partout au Sénégal.",
		Suggestions: []string{"Voir les business disponibles", "Est-ce que vous livrez à Thiès ?"},
	}
	sess := h.engine.NewSession("s1", desktopUA)

	m := only(t, h.engine.Handle(context.Background(), sess, Input{
		Text: "Est-ce que vous livrez à Thiès ?",
		Page: domain.PageContext{Page: "Business", URL: "/business/glow-shop"},
	}))

	assert.Equal(t, "Oui, nous livrons partout au Sénégal.", m.Content)
	require.Len(t, m.Suggestions, 1, "the repeated question is filtered out")
	assert.Equal(t, domain.ActionShowBusinesses, m.Suggestions[0].Action)

	require.Len(t, h.completer.calls, 1)
	req := h.completer.calls[0]
	assert.Equal(t, "s1", req.SessionID)
	assert.Equal(t, "/business/glow-shop", req.Context.URL)
	require.NotNil(t, req.ConversionState)
}

func TestCompletion_NeedsHumanNudge(t *testing.T) {
	t.Run("adds nudge without contact chip", func(t *testing.T) {
		h := newHarness(t)
		h.completer.resp = &ai.CompletionResponse{Content: "Bonne question.", Suggestions: []string{"Voir les business disponibles"}, NeedsHuman: true}
		sess := h.engine.NewSession("s1", desktopUA)

		replies := h.say(sess, "Puis-je payer en plusieurs fois ?")
		require.Len(t, replies, 2)
		assert.True(t, replies[1].NeedsHuman)
		assert.Equal(t, domain.ActionContact, replies[1].Suggestions[0].Action)
		assert.Greater(t, replies[1].ID, replies[0].ID)
	})

	t.Run("no nudge when contact chip present", func(t *testing.T) {
		h := newHarness(t)
		h.completer.resp = &ai.CompletionResponse{Content: "Bonne question.", Suggestions: []string{"Contacter un conseiller"}, NeedsHuman: true}
		sess := h.engine.NewSession("s1", desktopUA)

		replies := h.say(sess, "Puis-je payer en plusieurs fois ?")
		require.Len(t, replies, 1)
		assert.Equal(t, domain.ActionContact, replies[0].Suggestions[0].Action)
	})
}

func TestFinish_DiscardsStaleCompletion(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	first := h.engine.Begin(sess, Input{Text: "Question lente ?", Page: homePage})
	require.True(t, first.NeedsCompletion())

	second := h.engine.Begin(sess, Input{Text: "Je voudrais parler à un conseiller", Page: homePage})
	require.False(t, second.NeedsCompletion())
	count := len(sess.Messages)

	replies, ok := h.engine.Finish(sess, first, &ai.CompletionResponse{Content: "trop tard"}, nil)
	assert.False(t, ok)
	assert.Nil(t, replies)
	assert.Len(t, sess.Messages, count)
	for _, m := range sess.Messages {
		assert.NotEqual(t, "trop tard", m.Content)
	}
}

func TestFinish_ErrorWithoutCompleter(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Completer = nil })
	sess := h.engine.NewSession("s1", desktopUA)

	m := only(t, h.say(sess, "Une question libre ?"))
	assert.Equal(t, FallbackText, m.Content)
}

func TestFAQAnswer(t *testing.T) {
	cache := faq.NewCache(nil, nil, nil)
	cache.Set([]*domain.FAQ{{Question: "Comment se passe le paiement ?", Answer: "En deux fois.", Active: true}})
	h := newHarness(t, func(cfg *Config) { cfg.FAQ = cache })
	sess := h.engine.NewSession("s1", desktopUA)

	m := only(t, h.say(sess, "comment se passe le paiement"))
	assert.Equal(t, "En deux fois.", m.Content)
	assert.Equal(t, domain.ActionShowBusinesses, m.Suggestions[0].Action)
	assert.Empty(t, h.completer.calls)
}

func TestRetryLater(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	m := only(t, h.say(sess, "Réessayer plus tard"))
	assert.NotContains(t, m.Content, "indisponible")
	assert.Empty(t, h.completer.calls)
}

func TestFindCurrentBusiness(t *testing.T) {
	h := newHarness(t)

	t.Run("state wins", func(t *testing.T) {
		sess := h.engine.NewSession("s1", desktopUA)
		sess.State = domain.About(domain.StateAwaitingAspectChoice, "Kaolack Chic")
		sess.ActiveBusiness = "Glow Shop"
		assert.Equal(t, "Kaolack Chic", h.engine.FindCurrentBusiness(sess).Name)
	})

	t.Run("assistant question in recent messages", func(t *testing.T) {
		sess := h.engine.NewSession("s1", desktopUA)
		store := h.engine.store(sess)
		store.Append(domain.Message{Role: domain.RoleUser, Content: "Et Glow Shop ?"})
		store.Append(domain.Message{Role: domain.RoleAssistant, Content: "Voulez-vous en savoir plus sur Dakar Délices ?"})
		assert.Equal(t, "Dakar Délices", h.engine.FindCurrentBusiness(sess).Name)
	})

	t.Run("visitor mention", func(t *testing.T) {
		sess := h.engine.NewSession("s1", desktopUA)
		h.engine.store(sess).Append(domain.Message{Role: domain.RoleUser, Content: "J'hésite pour Kaolack Chic"})
		assert.Equal(t, "Kaolack Chic", h.engine.FindCurrentBusiness(sess).Name)
	})

	t.Run("active business", func(t *testing.T) {
		sess := h.engine.NewSession("s1", desktopUA)
		sess.ActiveBusiness = "Glow Shop"
		assert.Equal(t, "Glow Shop", h.engine.FindCurrentBusiness(sess).Name)
	})

	t.Run("nothing falls back to general interest", func(t *testing.T) {
		sess := h.engine.NewSession("s1", desktopUA)
		assert.Nil(t, h.engine.FindCurrentBusiness(sess))

		m := only(t, h.say(sess, "Oui, je l'ai fait"))
		assert.Contains(t, domain.Labels(m.Suggestions), LabelUndecided)
	})
}

func TestRecording(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	h.say(sess, "Je suis intéressé par un business")
	h.say(sess, "Quel est le prix du business Glow Shop ?")

	require.Len(t, h.sink.turns, 2)
	assert.Equal(t, "Je suis intéressé par un business", h.sink.turns[0].UserMessage)
	assert.Equal(t, "/", h.sink.turns[0].URL)
	assert.True(t, strings.Contains(h.sink.turns[1].AssistantResponse, "450 000"))

	require.NotEmpty(t, h.sink.snapshots)
	last := h.sink.snapshots[len(h.sink.snapshots)-1]
	assert.Equal(t, "s1", last.SessionID)
	assert.Contains(t, last.BusinessesViewed, "Glow Shop")
}

func TestStageNeverRegressesThroughDialogue(t *testing.T) {
	h := newHarness(t)
	sess := h.engine.NewSession("s1", desktopUA)

	h.say(sess, "Kaolack Chic")
	h.say(sess, "Je veux acquérir ce business")
	require.Equal(t, domain.StageDecision, sess.Funnel.Stage)

	h.say(sess, "Je suis intéressé par un business")
	h.say(sess, "Oui, je l'ai fait")
	assert.Equal(t, domain.StageDecision, sess.Funnel.Stage)
	assert.True(t, sess.Funnel.ReadyToBuy)
}

func TestComplete_NoCompleter(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Completer = nil })
	_, err := h.engine.Complete(context.Background(), &ai.CompletionRequest{})
	assert.True(t, errors.Is(err, apperrors.ErrLLMUnavailable))
}
