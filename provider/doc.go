// Package provider implements a generic framework for named, swappable
// backends.
//
// A Registry holds provider instances in registration order and the
// factories that build them from configuration. A Selector resolves a list
// of requested names against a registry into the ordered subset that should
// be tried:
//
//	reg := provider.NewRegistry[Backend]()
//	reg.RegisterFactory("http", newHTTPBackend)
//	b, _ := reg.Create(ctx, "http", map[string]any{"name": "primary"})
//	_ = reg.Register(b)
//
//	sel := &provider.PrioritySelector[Backend]{}
//	candidates := sel.Select(ctx, []string{"primary", "secondary"}, reg)
//
// Providers that need setup or hold resources opt into Initializable and
// Closeable; Create calls Init and Registry.Close calls Close.
package provider
