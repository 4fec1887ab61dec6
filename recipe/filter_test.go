package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestFilterSpec_NormalizeDefaults(t *testing.T) {
	spec := FilterSpec{}.Normalize()

	assert.Equal(t, SortLatest, spec.Sort)
	assert.Equal(t, DefaultLimit, spec.Limit)
	assert.Nil(t, spec.Categories)
	assert.Nil(t, spec.Tags)
	assert.Nil(t, spec.CookingTime)
}

func TestFilterSpec_NormalizeIsCanonical(t *testing.T) {
	a := FilterSpec{
		SearchText: "  kimchi ",
		Categories: map[Dimension][]string{
			DimensionCuisine:   {"korean", "japanese", "korean"},
			DimensionSituation: {},
		},
		Tags:        []string{"spicy", " ", "quick", "spicy"},
		CookingTime: &TimeRange{},
	}
	b := FilterSpec{
		SearchText: "kimchi",
		Categories: map[Dimension][]string{
			DimensionCuisine: {"japanese", "korean"},
		},
		Tags:  []string{"quick", "spicy"},
		Sort:  SortLatest,
		Limit: DefaultLimit,
	}

	assert.Equal(t, b.Normalize(), a.Normalize())
	assert.Equal(t, a.Normalize(), a.Normalize().Normalize())
}

func TestFilterSpec_NormalizeCopiesPointers(t *testing.T) {
	public := true
	spec := FilterSpec{Public: &public, CookingTime: &TimeRange{Min: ptr(5)}}

	out := spec.Normalize()
	public = false
	*spec.CookingTime.Min = 50

	require.NotNil(t, out.Public)
	assert.True(t, *out.Public)
	assert.Equal(t, 5, *out.CookingTime.Min)
}

func TestFilterSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    FilterSpec
		wantErr bool
	}{
		{name: "zero value", spec: FilterSpec{}},
		{name: "normalized zero value", spec: FilterSpec{}.Normalize()},
		{name: "full", spec: FilterSpec{
			SearchText:  "stew",
			Categories:  map[Dimension][]string{DimensionDishType: {"soup"}},
			CookingTime: &TimeRange{Min: ptr(10), Max: ptr(30)},
			Tags:        []string{"winter"},
			Sort:        SortMostCooked,
			Limit:       20,
			Offset:      40,
		}},
		{name: "limit at bound", spec: FilterSpec{Limit: DefaultMaxLimit}},
		{name: "limit above bound", spec: FilterSpec{Limit: DefaultMaxLimit + 1}, wantErr: true},
		{name: "negative limit", spec: FilterSpec{Limit: -1}, wantErr: true},
		{name: "negative offset", spec: FilterSpec{Offset: -5}, wantErr: true},
		{name: "unknown sort", spec: FilterSpec{Sort: "random"}, wantErr: true},
		{name: "unknown dimension", spec: FilterSpec{Categories: map[Dimension][]string{"season": {"winter"}}}, wantErr: true},
		{name: "empty dimension", spec: FilterSpec{Categories: map[Dimension][]string{DimensionCuisine: {}}}, wantErr: true},
		{name: "blank code", spec: FilterSpec{Categories: map[Dimension][]string{DimensionCuisine: {" "}}}, wantErr: true},
		{name: "blank tag", spec: FilterSpec{Tags: []string{""}}, wantErr: true},
		{name: "inverted cooking time", spec: FilterSpec{CookingTime: &TimeRange{Min: ptr(30), Max: ptr(10)}}, wantErr: true},
		{name: "negative cooking time", spec: FilterSpec{CookingTime: &TimeRange{Min: ptr(-1)}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate(0)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err), "expected validation category, got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFilterSpec_ValidateCustomBound(t *testing.T) {
	spec := FilterSpec{Limit: 30}
	assert.Error(t, spec.Validate(25))
	assert.NoError(t, spec.Validate(50))
}
