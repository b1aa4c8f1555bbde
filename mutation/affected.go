package mutation

import (
	"context"

	"github.com/goliatone/go-resource-list/query"
)

type affectedContextKey struct{}

// WithAffected attaches additional resource types to ctx. PerformOn invalidates them
// together with the resource it writes to, e.g. team member counts shown on the teams
// list after a member is removed.
func WithAffected(ctx context.Context, resources ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(resources) == 0 {
		return ctx
	}

	combined := dedupeResources(append(affectedFromContext(ctx), resources...))
	if len(combined) == 0 {
		return ctx
	}

	return context.WithValue(ctx, affectedContextKey{}, combined)
}

func affectedFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if resources, ok := ctx.Value(affectedContextKey{}).([]string); ok {
		return append([]string(nil), resources...)
	}
	return nil
}

// dedupeResources normalizes resource names and drops empty and repeated ones,
// keeping the first occurrence order.
func dedupeResources(resources []string) []string {
	seen := make(map[string]struct{}, len(resources))
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		r = query.NormalizeResource(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
