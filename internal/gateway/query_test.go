package gateway

import (
	"fmt"
	"testing"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlias(t *testing.T) {
	testCases := []struct {
		owner, name string
		expected    string
	}{
		{owner: "acme", name: "api", expected: "repo_acme__api"},
		{owner: "my-org", name: "web.app", expected: "repo_my_horg__web_dapp"},
		{owner: "a_b", name: "c", expected: "repo_a_ub__c"},
		{owner: "A1", name: "x-y_z.w", expected: "repo_A1__x_hy_uz_dw"},
	}
	for _, tc := range testCases {
		t.Run(tc.owner+"/"+tc.name, func(t *testing.T) {
			alias := Alias(tc.owner, tc.name)
			assert.Equal(t, tc.expected, alias)
			assert.Equal(t, alias, Alias(tc.owner, tc.name), "alias must be deterministic")

			ref, ok := ParseAlias(alias)
			require.True(t, ok)
			assert.Equal(t, domain.RepositoryRef{Owner: tc.owner, Name: tc.name}, ref)
		})
	}
}

func TestAlias_NoCollisions(t *testing.T) {
	// Pairs whose naive "replace punctuation with _" forms coincide.
	pairs := [][2]string{
		{"owner", "a.b"}, {"owner", "a_b"}, {"owner", "a-b"},
		{"a_b", "c"}, {"a", "b_c"}, {"a__b", "c"}, {"a", "_b_c"},
	}
	seen := make(map[string]string)
	for _, p := range pairs {
		alias := Alias(p[0], p[1])
		id := p[0] + "/" + p[1]
		if prev, ok := seen[alias]; ok {
			t.Fatalf("alias %q shared by %s and %s", alias, prev, id)
		}
		seen[alias] = id
	}
}

func TestParseAlias_Invalid(t *testing.T) {
	for _, alias := range []string{"", "viewer", "repo_", "repo_acme", "repo_acme__", "repo___api", "repo_a__b__c", "repo_a_x__b", "repo_a__b_"} {
		t.Run(alias, func(t *testing.T) {
			_, ok := ParseAlias(alias)
			assert.False(t, ok)
		})
	}
}

func TestBuildAggregationQuery(t *testing.T) {
	t.Run("empty selection fetches only the viewer", func(t *testing.T) {
		q, err := BuildAggregationQuery(nil, DefaultBatchSize)
		require.NoError(t, err)
		assert.True(t, q.Empty())
		assert.Equal(t, "", q.Key)
		require.Len(t, q.Batches, 1)
		assert.Empty(t, q.Batches[0].Aliases)
		assert.Empty(t, q.Batches[0].Variables)
		assert.Equal(t, 1, q.Batches[0].queryType.NumField())
	})

	t.Run("aliases are parameterised by variables", func(t *testing.T) {
		refs := []domain.RepositoryRef{{Owner: "acme", Name: "api"}, {Owner: "acme", Name: "web"}}
		q, err := BuildAggregationQuery(refs, DefaultBatchSize)
		require.NoError(t, err)
		assert.Equal(t, "acme/api,acme/web", q.Key)
		require.Len(t, q.Batches, 1)

		b := q.Batches[0]
		assert.Equal(t, []string{"repo_acme__api", "repo_acme__web"}, b.Aliases)
		assert.Len(t, b.Variables, 4)
		field := b.queryType.Field(2)
		assert.Equal(t, `repo_acme__web: repository(owner: $owner1, name: $name1)`, field.Tag.Get("graphql"))
	})

	t.Run("large selections are split into batches", func(t *testing.T) {
		refs := make([]domain.RepositoryRef, 0, 120)
		for i := 0; i < 120; i++ {
			refs = append(refs, domain.RepositoryRef{Owner: "acme", Name: fmt.Sprintf("repo%03d", i)})
		}
		q, err := BuildAggregationQuery(refs, 50)
		require.NoError(t, err)
		require.Len(t, q.Batches, 3)
		assert.Len(t, q.Batches[0].Repos, 50)
		assert.Len(t, q.Batches[2].Repos, 20)
		assert.Equal(t, refs[100], q.Batches[2].Repos[0])
	})

	t.Run("unsorted input is rejected", func(t *testing.T) {
		refs := []domain.RepositoryRef{{Owner: "acme", Name: "web"}, {Owner: "acme", Name: "api"}}
		_, err := BuildAggregationQuery(refs, DefaultBatchSize)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("duplicates are rejected", func(t *testing.T) {
		refs := []domain.RepositoryRef{{Owner: "acme", Name: "api"}, {Owner: "acme", Name: "api"}}
		_, err := BuildAggregationQuery(refs, DefaultBatchSize)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("invalid identifiers are rejected", func(t *testing.T) {
		refs := []domain.RepositoryRef{{Owner: "acme", Name: `api"){x}`}}
		_, err := BuildAggregationQuery(refs, DefaultBatchSize)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestQueryCache(t *testing.T) {
	refs := []domain.RepositoryRef{{Owner: "acme", Name: "api"}}

	cache := NewQueryCache(DefaultBatchSize)
	first, err := cache.Get(refs)
	require.NoError(t, err)
	second, err := cache.Get(refs)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())

	other := NewQueryCache(DefaultBatchSize)
	assert.Equal(t, 0, other.Len())
	third, err := other.Get(refs)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}
