package gateway

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/shurcooL/githubv4"
)

const (
	aliasPrefix    = "repo_"
	aliasSeparator = "__"

	// DefaultBatchSize is the number of repository aliases per composite request.
	DefaultBatchSize = 50

	maxCachedQueries = 32
)

var (
	repositoryPullRequestsType = reflect.TypeOf((*RepositoryPullRequests)(nil))
	viewerField                = reflect.StructField{Name: "Viewer", Type: reflect.TypeOf(viewerNode{})}
)

// Alias returns the GraphQL alias for a repository. Letters and digits pass
// through; '_', '.' and '-' are escaped as "_u", "_d" and "_h", and owner and
// name are joined by "__". The encoding is injective, so two repositories never
// share an alias.
func Alias(owner, name string) string {
	var b strings.Builder
	b.Grow(len(aliasPrefix) + len(owner) + len(name) + len(aliasSeparator) + 8)
	b.WriteString(aliasPrefix)
	escapeAliasPart(&b, owner)
	b.WriteString(aliasSeparator)
	escapeAliasPart(&b, name)
	return b.String()
}

func escapeAliasPart(b *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '_':
			b.WriteString("_u")
		case '.':
			b.WriteString("_d")
		case '-':
			b.WriteString("_h")
		default:
			b.WriteRune(r)
		}
	}
}

// ParseAlias inverts Alias.
func ParseAlias(alias string) (domain.RepositoryRef, bool) {
	rest, ok := strings.CutPrefix(alias, aliasPrefix)
	if !ok {
		return domain.RepositoryRef{}, false
	}
	var parts [2]strings.Builder
	part := 0
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c != '_' {
			parts[part].WriteByte(c)
			continue
		}
		if i+1 >= len(rest) {
			return domain.RepositoryRef{}, false
		}
		i++
		switch rest[i] {
		case 'u':
			parts[part].WriteByte('_')
		case 'd':
			parts[part].WriteByte('.')
		case 'h':
			parts[part].WriteByte('-')
		case '_':
			if part == 1 {
				return domain.RepositoryRef{}, false
			}
			part = 1
		default:
			return domain.RepositoryRef{}, false
		}
	}
	if part != 1 || parts[0].Len() == 0 || parts[1].Len() == 0 {
		return domain.RepositoryRef{}, false
	}
	return domain.RepositoryRef{Owner: parts[0].String(), Name: parts[1].String()}, true
}

// AggregationQuery is the immutable query descriptor for one canonical
// repository set. Its Key is the sorted, comma-joined repository list.
type AggregationQuery struct {
	Key     string
	Repos   []domain.RepositoryRef
	Batches []*QueryBatch
}

// Empty reports whether the query aggregates no repositories.
func (q *AggregationQuery) Empty() bool {
	return len(q.Repos) == 0
}

// QueryBatch is one composite GraphQL request: the viewer plus one aliased
// repository field per repo, with owner and name passed as variables.
type QueryBatch struct {
	Repos     []domain.RepositoryRef
	Aliases   []string
	Variables map[string]any

	queryType reflect.Type
}

// BuildAggregationQuery builds the descriptor for refs, which must be sorted
// and free of duplicates (see domain.CanonicalSelection). An empty set yields
// a single viewer-only batch. Sets larger than batchSize are split into
// consecutive batches.
func BuildAggregationQuery(refs []domain.RepositoryRef, batchSize int) (*AggregationQuery, error) {
	if !domain.IsCanonical(refs) {
		return nil, fmt.Errorf("%w: repositories must be sorted and unique", domain.ErrInvalidArgument)
	}
	for _, ref := range refs {
		if _, err := domain.ParseRepositoryRef(ref.String()); err != nil {
			return nil, err
		}
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	q := &AggregationQuery{
		Key:   domain.SelectionKey(refs),
		Repos: append([]domain.RepositoryRef(nil), refs...),
	}
	if len(refs) == 0 {
		q.Batches = []*QueryBatch{newQueryBatch(nil)}
		return q, nil
	}
	for start := 0; start < len(refs); start += batchSize {
		end := min(start+batchSize, len(refs))
		q.Batches = append(q.Batches, newQueryBatch(q.Repos[start:end]))
	}
	return q, nil
}

func newQueryBatch(refs []domain.RepositoryRef) *QueryBatch {
	fields := make([]reflect.StructField, 0, len(refs)+1)
	fields = append(fields, viewerField)
	b := &QueryBatch{
		Repos:   refs,
		Aliases: make([]string, len(refs)),
	}
	if len(refs) > 0 {
		b.Variables = make(map[string]any, 2*len(refs))
	}
	for i, ref := range refs {
		alias := Alias(ref.Owner, ref.Name)
		ownerVar, nameVar := fmt.Sprintf("owner%d", i), fmt.Sprintf("name%d", i)
		fields = append(fields, reflect.StructField{
			Name: fmt.Sprintf("Repo%d", i),
			Type: repositoryPullRequestsType,
			Tag:  reflect.StructTag(fmt.Sprintf(`graphql:"%s: repository(owner: $%s, name: $%s)"`, alias, ownerVar, nameVar)),
		})
		b.Aliases[i] = alias
		b.Variables[ownerVar] = githubv4.String(ref.Owner)
		b.Variables[nameVar] = githubv4.String(ref.Name)
	}
	b.queryType = reflect.StructOf(fields)
	return b
}

// newResult allocates the value githubv4 decodes the response into.
func (b *QueryBatch) newResult() any {
	return reflect.New(b.queryType).Interface()
}

// response reads the decoded value back into an alias-keyed response.
// Aliases upstream returned as null are absent from Repositories.
func (b *QueryBatch) response(v any, errs []GraphQLError) *AliasedResponse {
	rv := reflect.ValueOf(v).Elem()
	resp := &AliasedResponse{
		Viewer:       rv.Field(0).Interface().(viewerNode).Login,
		Repositories: make(map[string]*RepositoryPullRequests, len(b.Aliases)),
		Errors:       errs,
	}
	for i, alias := range b.Aliases {
		if node, ok := rv.Field(i + 1).Interface().(*RepositoryPullRequests); ok && node != nil {
			resp.Repositories[alias] = node
		}
	}
	return resp
}

// QueryCache memoizes aggregation queries by selection key. Each owner
// constructs its own; there is no package-level instance.
type QueryCache struct {
	mu        sync.Mutex
	batchSize int
	entries   map[string]*AggregationQuery
}

// NewQueryCache creates an empty cache building batches of batchSize repositories.
func NewQueryCache(batchSize int) *QueryCache {
	return &QueryCache{
		batchSize: batchSize,
		entries:   make(map[string]*AggregationQuery),
	}
}

// Get returns the cached query for refs, building it on first use.
func (c *QueryCache) Get(refs []domain.RepositoryRef) (*AggregationQuery, error) {
	key := domain.SelectionKey(refs)

	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.entries[key]; ok {
		return q, nil
	}
	q, err := BuildAggregationQuery(refs, c.batchSize)
	if err != nil {
		return nil, err
	}
	if len(c.entries) >= maxCachedQueries {
		clear(c.entries)
	}
	c.entries[key] = q
	return q, nil
}

// Len returns the number of cached queries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
