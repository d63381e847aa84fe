package refresh

import (
	"testing"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
)

func detail(id string) *domain.PullRequestDetail {
	d := &domain.PullRequestDetail{}
	d.ID = id
	return d
}

func TestDetailCache(t *testing.T) {
	api := domain.RepositoryRef{Owner: "acme", Name: "api"}

	t.Run("put and get", func(t *testing.T) {
		c := NewDetailCache()
		assert.True(t, c.Put(api, 1, detail("PR_1"), c.Generation()))
		d, ok := c.Get(api, 1)
		assert.True(t, ok)
		assert.Equal(t, "PR_1", d.ID)
		_, ok = c.Get(api, 2)
		assert.False(t, ok)
	})

	t.Run("put after eviction is ignored", func(t *testing.T) {
		c := NewDetailCache()
		gen := c.Generation()
		c.Evict("PR_9")
		assert.False(t, c.Put(api, 1, detail("PR_1"), gen))
		assert.Equal(t, 0, c.Len())
	})

	t.Run("evict by id", func(t *testing.T) {
		c := NewDetailCache()
		c.Put(api, 1, detail("PR_1"), c.Generation())
		c.Put(api, 2, detail("PR_2"), c.Generation())
		c.Evict("PR_1")
		_, ok := c.Get(api, 1)
		assert.False(t, ok)
		_, ok = c.Get(api, 2)
		assert.True(t, ok)
	})

	t.Run("evict all", func(t *testing.T) {
		c := NewDetailCache()
		c.Put(api, 1, detail("PR_1"), c.Generation())
		c.Evict()
		assert.Equal(t, 0, c.Len())
	})
}
