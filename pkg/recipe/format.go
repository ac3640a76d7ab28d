package recipe

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

const (
	ingredientPrefix = "strIngredient"
	measurePrefix    = "strMeasure"
)

// numbered is a strIngredientN or strMeasureN value with its N.
type numbered struct {
	n     int
	value string
}

// Format converts a single TheMealDB meal object into a Recipe. The API pads
// every meal to twenty ingredient and measure slots and marks unused ones
// inconsistently (null, "", " " or "nil"); those are dropped.
func Format(meal gjson.Result) *Recipe {
	var ingredients, measures []numbered
	fields := make(map[string]string)

	meal.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if value.Type == gjson.Null || isBlank(value.String()) {
			return true
		}
		v := value.String()
		switch {
		case strings.HasPrefix(k, ingredientPrefix):
			ingredients = append(ingredients, numbered{n: slot(k, ingredientPrefix), value: v})
		case strings.HasPrefix(k, measurePrefix):
			measures = append(measures, numbered{n: slot(k, measurePrefix), value: v})
		default:
			fields[k] = v
		}
		return true
	})

	bySlot := func(a, b numbered) int { return cmp.Compare(a.n, b.n) }
	slices.SortStableFunc(ingredients, bySlot)
	slices.SortStableFunc(measures, bySlot)

	values := func(items []numbered) []string {
		return lo.Map(items, func(item numbered, _ int) string { return item.value })
	}

	r := &Recipe{
		ID:           fields["idMeal"],
		Name:         fields["strMeal"],
		Category:     fields["strCategory"],
		Area:         fields["strArea"],
		Instructions: fields["strInstructions"],
		Thumbnail:    fields["strMealThumb"],
		Ingredients:  values(ingredients),
		Measurements: values(measures),
		Fields:       fields,
	}
	r.Lines = CombineIngredients(r.Ingredients, r.Measurements)
	return r
}

// CombineIngredients pairs ingredients with the measurement at the same
// position into bullet lines such as "• 1/2 cup sugar". An ingredient without
// a measurement is listed alone.
func CombineIngredients(ingredients, measurements []string) []string {
	return lo.Map(ingredients, func(ingredient string, i int) string {
		ingredient = strings.ToLower(strings.TrimSpace(ingredient))
		if i < len(measurements) {
			if m := strings.TrimSpace(measurements[i]); m != "" {
				return "• " + m + " " + ingredient
			}
		}
		return "• " + ingredient
	})
}

func isBlank(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "nil"
}

// slot returns N for key prefixN; malformed keys sort last.
func slot(key, prefix string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
	if err != nil {
		return math.MaxInt
	}
	return n
}
