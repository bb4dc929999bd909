package quest

import (
	"errors"
	"testing"

	"github.com/kasuganosora/questd/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_Valid(t *testing.T) {
	require.NoError(t, DefaultCatalog.Validate())
	assert.Len(t, DefaultCatalog, 20)

	kinds := map[model.ObjectiveKind]bool{}
	for _, tpl := range DefaultCatalog {
		kinds[tpl.ObjectiveKind] = true
	}
	assert.Len(t, kinds, 14, "every objective kind is covered")
}

func TestTemplatesFor_FiltersInOrder(t *testing.T) {
	for _, p := range model.AllPeriods {
		got := DefaultCatalog.TemplatesFor(p)
		require.NotEmpty(t, got, "period %s", p)
		for _, tpl := range got {
			assert.True(t, tpl.EligibleFor(p))
		}
	}

	monthly := DefaultCatalog.TemplatesFor(model.PeriodMonthly)
	for _, tpl := range monthly {
		assert.NotEqual(t, model.ObjectiveDefeatEnemyFullHP, tpl.ObjectiveKind)
	}
}

func TestValidate_Errors(t *testing.T) {
	good := Template{
		ObjectiveKind:       model.ObjectiveDefeatEnemy,
		TitleTemplate:       "Defeat {count}",
		DescriptionTemplate: "Beat {count} enemies",
		MinTarget:           1,
		MaxTarget:           2,
		EligiblePeriods:     everyPeriod,
	}
	require.NoError(t, Catalog{good}.Validate())

	badMin := good
	badMin.MinTarget = 0
	assert.True(t, errors.Is(Catalog{badMin}.Validate(), ErrInvalidTemplate))

	badRange := good
	badRange.MaxTarget = 0
	assert.True(t, errors.Is(Catalog{badRange}.Validate(), ErrInvalidTemplate))

	noPlaceholder := good
	noPlaceholder.TitleTemplate = "Defeat enemies"
	assert.True(t, errors.Is(Catalog{noPlaceholder}.Validate(), ErrInvalidTemplate))

	dailyOnlyTpl := good
	dailyOnlyTpl.EligiblePeriods = dailyOnly
	assert.True(t, errors.Is(Catalog{dailyOnlyTpl}.Validate(), ErrNoTemplates))

	assert.True(t, errors.Is(Catalog{}.Validate(), ErrNoTemplates))
}
