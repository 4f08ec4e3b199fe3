package catalog

import "go.uber.org/fx"

var Module = fx.Module("catalog.reader",
	fx.Provide(
		NewStore,
		func(s *Store) Reader { return s },
	),
)

// Models lists the catalog tables for auto-migration.
func Models() []any {
	return []any{&Novel{}, &Chapter{}}
}
