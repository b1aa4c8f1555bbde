package urlsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-resource-list/query"
)

func jobsSchema() query.Schema {
	return query.Schema{
		Resource:        "jobs",
		Filters:         []string{"team", "status", "location"},
		PageSizes:       []int{10, 20, 50},
		DefaultPageSize: 10,
	}
}

func TestParseSerialize_RoundTrip(t *testing.T) {
	schema := jobsSchema()

	filterSets := []query.FilterSet{
		{},
		{"team": "T1"},
		{"team": "T1", "status": ""},
		{"search": "analyst", "status": "open"},
		{"search": "a&b=c d", "location": "São Paulo"},
		{"team": "x::y", "status": "50%", "search": "  spaced  "},
	}
	pages := []query.PageSpec{
		{Index: 1, Size: 10},
		{Index: 3, Size: 10},
		{Index: 2, Size: 50},
	}

	for _, filters := range filterSets {
		for _, page := range pages {
			state := query.State{Filters: filters, Page: page}
			raw := Serialize(schema, state)

			got, problems := Parse(schema, raw)
			require.Empty(t, problems, "raw=%q", raw)
			assert.True(t, got.Filters.Equal(filters.Normalize()), "raw=%q filters=%v", raw, got.Filters)
			assert.Equal(t, page, got.Page, "raw=%q", raw)
		}
	}
}

func TestSerialize_OmitsDefaults(t *testing.T) {
	schema := jobsSchema()

	assert.Equal(t, "", Serialize(schema, schema.InitialState()))

	state := query.State{Filters: query.FilterSet{"team": "T2", "status": ""}, Page: query.PageSpec{Index: 1, Size: 10}}
	assert.Equal(t, "team=T2", Serialize(schema, state))

	state.Page = query.PageSpec{Index: 3, Size: 20}
	assert.Equal(t, "page=3&pageSize=20&team=T2", Serialize(schema, state))
}

func TestSerialize_ExplicitPage(t *testing.T) {
	schema := jobsSchema()
	raw := Serialize(schema, schema.InitialState(), CodecOptions{ExplicitPage: true})
	assert.Equal(t, "page=1&pageSize=10", raw)
}

func TestSerialize_DropsUnknownFilters(t *testing.T) {
	state := query.State{Filters: query.FilterSet{"team": "T1", "secret": "x"}, Page: query.PageSpec{Index: 1, Size: 10}}
	assert.Equal(t, "team=T1", Serialize(jobsSchema(), state))
}

func TestParse_RecoversFromGarbage(t *testing.T) {
	schema := jobsSchema()

	tests := []struct {
		name         string
		raw          string
		wantFilters  query.FilterSet
		wantPage     query.PageSpec
		wantProblems []string
	}{
		{
			name:        "empty",
			raw:         "",
			wantFilters: query.FilterSet{},
			wantPage:    query.PageSpec{Index: 1, Size: 10},
		},
		{
			name:        "unknown params ignored",
			raw:         "foo=bar&utm_source=mail&team=T1",
			wantFilters: query.FilterSet{"team": "T1"},
			wantPage:    query.PageSpec{Index: 1, Size: 10},
		},
		{
			name:         "non numeric page",
			raw:          "page=abc&team=T1",
			wantFilters:  query.FilterSet{"team": "T1"},
			wantPage:     query.PageSpec{Index: 1, Size: 10},
			wantProblems: []string{ParamPage},
		},
		{
			name:         "negative page",
			raw:          "page=-2",
			wantFilters:  query.FilterSet{},
			wantPage:     query.PageSpec{Index: 1, Size: 10},
			wantProblems: []string{ParamPage},
		},
		{
			name:         "zero page",
			raw:          "page=0&pageSize=20",
			wantFilters:  query.FilterSet{},
			wantPage:     query.PageSpec{Index: 1, Size: 20},
			wantProblems: []string{ParamPage},
		},
		{
			name:         "disallowed page size",
			raw:          "page=4&pageSize=7",
			wantFilters:  query.FilterSet{},
			wantPage:     query.PageSpec{Index: 4, Size: 10},
			wantProblems: []string{ParamPageSize},
		},
		{
			name:         "both bad",
			raw:          "page=x&pageSize=y",
			wantFilters:  query.FilterSet{},
			wantPage:     query.PageSpec{Index: 1, Size: 10},
			wantProblems: []string{ParamPage, ParamPageSize},
		},
		{
			name:        "empty filter value",
			raw:         "team=&status=open",
			wantFilters: query.FilterSet{"status": "open"},
			wantPage:    query.PageSpec{Index: 1, Size: 10},
		},
		{
			name:         "malformed escape keeps valid pairs",
			raw:          "team=T1&status=%zz",
			wantFilters:  query.FilterSet{"team": "T1"},
			wantPage:     query.PageSpec{Index: 1, Size: 10},
			wantProblems: []string{"query"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, problems := Parse(schema, tt.raw)

			assert.True(t, state.Filters.Equal(tt.wantFilters), "filters = %v", state.Filters)
			assert.Equal(t, tt.wantPage, state.Page)

			var fields []string
			for _, p := range problems {
				fields = append(fields, p.Field)
			}
			assert.ElementsMatch(t, tt.wantProblems, fields)
		})
	}
}
