package quest

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/kasuganosora/questd/model"
)

// Rand is the randomness the generator needs. *rand.Rand satisfies it.
type Rand interface {
	// IntN returns a uniform int in [0, n).
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Spec is a materialized quest instance that has not been persisted yet.
type Spec struct {
	Title         string
	Description   string
	ObjectiveKind model.ObjectiveKind
	TargetValue   int
	RewardExp     int
	RewardCoins   int
	Period        model.Period
}

// Quest converts the spec to its persisted form.
func (s Spec) Quest() *model.Quest {
	return &model.Quest{
		Title:         s.Title,
		Description:   s.Description,
		ObjectiveKind: s.ObjectiveKind,
		TargetValue:   s.TargetValue,
		RewardExp:     s.RewardExp,
		RewardCoins:   s.RewardCoins,
		Period:        s.Period,
	}
}

// Generator draws quest specs from a catalog.
type Generator struct {
	catalog Catalog
	mu      sync.Mutex // guards rng; callers generate concurrently
	rng     Rand
}

// NewGenerator returns a Generator. A nil rng uses the global source.
func NewGenerator(catalog Catalog, rng Rand) *Generator {
	if rng == nil {
		rng = globalRand{}
	}
	return &Generator{catalog: catalog, rng: rng}
}

// Generate draws count specs for p, sampling templates with replacement.
func (g *Generator) Generate(p model.Period, count int) ([]Spec, error) {
	templates := g.catalog.TemplatesFor(p)
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplates, p)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	specs := make([]Spec, 0, count)
	for i := 0; i < count; i++ {
		t := templates[g.rng.IntN(len(templates))]
		target := t.MinTarget + g.rng.IntN(t.MaxTarget-t.MinTarget+1)
		specs = append(specs, Materialize(t, p, target))
	}
	return specs, nil
}

// Materialize builds the spec for template t at the given target.
func Materialize(t Template, p model.Period, target int) Spec {
	scale := float64(target) / float64(t.MinTarget) * Multiplier(p)
	n := strconv.Itoa(target)
	return Spec{
		Title:         strings.Replace(t.TitleTemplate, Placeholder, n, 1),
		Description:   strings.Replace(t.DescriptionTemplate, Placeholder, n, 1),
		ObjectiveKind: t.ObjectiveKind,
		TargetValue:   target,
		RewardExp:     int(math.Round(float64(t.BaseExpReward) * scale)),
		RewardCoins:   int(math.Round(float64(t.BaseCoinReward) * scale)),
		Period:        p,
	}
}
