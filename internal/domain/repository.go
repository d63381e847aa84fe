// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// repoPartPattern is the character set GitHub allows in owner and repository names.
var repoPartPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// RepositoryRef identifies a repository by owner and name.
type RepositoryRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String returns the canonical "owner/name" identity.
func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepositoryRef parses and validates an "owner/name" identifier.
func ParseRepositoryRef(id string) (RepositoryRef, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(id), "/")
	if !ok || strings.Contains(name, "/") {
		return RepositoryRef{}, fmt.Errorf("%w: repository %q must be in owner/name form", ErrInvalidArgument, id)
	}
	if !repoPartPattern.MatchString(owner) || !repoPartPattern.MatchString(name) {
		return RepositoryRef{}, fmt.Errorf("%w: repository %q contains unsupported characters", ErrInvalidArgument, id)
	}
	return RepositoryRef{Owner: owner, Name: name}, nil
}

// CanonicalSelection validates a user selection and returns it sorted and
// de-duplicated, together with its comma-joined identity key.
// The same logical set always yields the same key regardless of input order.
func CanonicalSelection(ids []string) ([]RepositoryRef, string, error) {
	seen := make(map[string]struct{}, len(ids))
	refs := make([]RepositoryRef, 0, len(ids))
	for _, id := range ids {
		ref, err := ParseRepositoryRef(id)
		if err != nil {
			return nil, "", err
		}
		if _, ok := seen[ref.String()]; ok {
			continue
		}
		seen[ref.String()] = struct{}{}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].String() < refs[j].String()
	})
	return refs, SelectionKey(refs), nil
}

// SelectionKey joins already-canonical refs into the selection identity key.
func SelectionKey(refs []RepositoryRef) string {
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = ref.String()
	}
	return strings.Join(parts, ",")
}

// IsCanonical reports whether refs are strictly ascending by identity,
// which implies they are also free of duplicates.
func IsCanonical(refs []RepositoryRef) bool {
	for i := 1; i < len(refs); i++ {
		if refs[i-1].String() >= refs[i].String() {
			return false
		}
	}
	return true
}
