// Package query holds the state a resource list is driven by: the filters a user has
// configured, the pagination cursor, and the canonical key that identifies one
// fetchable view.
//
// # Data model
//
//   - FilterSet: filter name to value. An empty value means "not set" and is dropped
//     by Normalize. The free-text search lives under SearchField.
//   - PageSpec: 1-based page index plus a page size from the Schema's allowed set.
//   - Key: resource type + normalized filters + page. Key.String is canonical, so two
//     keys built from the same values compare equal regardless of construction order.
//   - Schema: the facets, page sizes and default page size of one resource.
//
// # Store
//
// Store is the single source of truth for one list. Filter changes always reset the
// page index to 1; all mutators are no-ops when the resulting state is unchanged, so
// subscribers never see redundant notifications.
//
//	store := query.NewStore(schema)
//	unsubscribe := store.Subscribe(func(c query.Change) {
//		key := query.NewKey(schema.Resource, c.State.Filters, c.State.Page)
//		// drive the fetch cache with key
//	})
//	defer unsubscribe()
//
//	store.SetFilter(query.FilterSet{"team": "T2"})
package query
