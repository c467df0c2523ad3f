package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tekkistudio/tekki-chat/internal/domain"
)

type fakeSource struct {
	list []*domain.Business
	err  error
}

func (f *fakeSource) ListAvailable(context.Context) ([]*domain.Business, error) {
	return f.list, f.err
}

func biz(name string, price int64, status domain.BusinessStatus) *domain.Business {
	return &domain.Business{
		ID:     uuid.New(),
		Name:   name,
		Slug:   name,
		Price:  price,
		Status: status,
	}
}

func fixture() []*domain.Business {
	glow := biz("Glow Shop", 450000, domain.BusinessStatusAvailable)
	glow.Category = "Beauté"
	glow.Description = "Boutique de cosmétiques naturels"
	glow.TimeRequiredWeekly = "10-15h/semaine"

	kaolack := biz("Kaolack Chic", 300000, domain.BusinessStatusAvailable)
	kaolack.Category = "Mode"
	kaolack.Description = "Vêtements pour femmes"
	kaolack.TimeRequiredWeekly = "5h/semaine"

	sold := biz("Vieux Business", 100000, domain.BusinessStatusSold)

	pro := biz("Glow Shop Pro", 900000, domain.BusinessStatusAvailable)
	pro.Category = "Beauté"
	pro.TimeRequiredWeekly = "20h"

	return []*domain.Business{glow, kaolack, sold, pro}
}

func TestLoad_FiltersSoldAndKeepsOrder(t *testing.T) {
	c := New(&fakeSource{list: fixture()}, nil, nil)

	res := c.Load(context.Background())
	require.True(t, res.OK())
	require.Len(t, res.Businesses, 3)
	assert.Equal(t, []string{"Glow Shop", "Kaolack Chic", "Glow Shop Pro"},
		[]string{res.Businesses[0].Name, res.Businesses[1].Name, res.Businesses[2].Name})
}

func TestLoad_FailureKeepsPreviousSet(t *testing.T) {
	src := &fakeSource{list: fixture()}
	c := New(src, nil, nil)
	require.True(t, c.Load(context.Background()).OK())

	src.err = errors.New("connection refused")
	res := c.Load(context.Background())

	assert.False(t, res.OK())
	assert.Len(t, res.Businesses, 3)
	assert.Equal(t, 3, c.Len())
}

func TestFindExact_OnlyAvailable(t *testing.T) {
	all := fixture()
	c := New(nil, nil, nil)
	c.SetAll(all)

	for _, b := range all {
		got := c.FindExact(b.Name)
		if b.IsAvailable() {
			assert.Same(t, b, got, b.Name)
		} else {
			assert.Nil(t, got, "sold business %q must not be found", b.Name)
		}
	}

	assert.NotNil(t, c.FindExact("kaolack CHIC"))
	assert.NotNil(t, c.FindExact("Glów Shop"))
	assert.Nil(t, c.FindExact("Glow"))
	assert.Nil(t, c.FindExact(""))
}

func TestMatchName(t *testing.T) {
	c := New(nil, nil, nil)
	c.SetAll(fixture())

	name, ok := c.MatchName(" glow shop ! ")
	assert.True(t, ok)
	assert.Equal(t, "Glow Shop", name)

	_, ok = c.MatchName("Vieux Business")
	assert.False(t, ok)
}

func TestFindByKeyword(t *testing.T) {
	c := New(nil, nil, nil)
	c.SetAll(fixture())

	got := c.FindByKeyword("cosmetiques")
	require.Len(t, got, 1)
	assert.Equal(t, "Glow Shop", got[0].Name)

	assert.Len(t, c.FindByKeyword("glow"), 2)
	assert.Empty(t, c.FindByKeyword("vieux"))
}

func TestResolve(t *testing.T) {
	c := New(nil, nil, nil)
	c.SetAll(fixture())

	tests := []struct {
		in   string
		want string
	}{
		{"Kaolack Chic", "Kaolack Chic"},
		{"business kaolack chic", "Kaolack Chic"},
		{"boutique glow shop", "Glow Shop"},
		{"la nouvelle glow shop pro de dakar", "Glow Shop Pro"},
		{"Business Fantôme", ""},
		{"vieux business", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := c.Resolve(tt.in)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestTopAndCheapest(t *testing.T) {
	c := New(nil, nil, nil)
	c.SetAll(fixture())

	assert.Len(t, c.Top(2), 2)
	assert.Len(t, c.Top(10), 3)

	cheapest := c.Cheapest(2)
	require.Len(t, cheapest, 2)
	assert.Equal(t, "Kaolack Chic", cheapest[0].Name)
	assert.Equal(t, "Glow Shop", cheapest[1].Name)
}

func TestRecommend(t *testing.T) {
	c := New(nil, nil, nil)
	c.SetAll(fixture())

	tests := []struct {
		name   string
		budget int64
		sector string
		time   string
		want   string
	}{
		{"budget only picks first fitting", 500000, "", "", "Glow Shop"},
		{"tight budget", 350000, "", "", "Kaolack Chic"},
		{"sector filter", 0, "beaute", "", "Glow Shop"},
		{"time filter", 0, "beauté", "12h", ""},
		{"time filter generous", 0, "beauté", "25 heures", "Glow Shop"},
		{"little time", 1000000, "", "6", "Kaolack Chic"},
		{"nothing fits", 100000, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Recommend(tt.budget, tt.sector, tt.time)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestParseWeeklyHours(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"10-15h/semaine", 15, true},
		{"5h", 5, true},
		{"environ 20 heures", 20, true},
		{"flexible", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseWeeklyHours(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
