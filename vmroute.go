// Package vmroute is the routing core of a request gateway: it registers
// virtual model targets, derives per-request features, scores and selects
// a target, and tracks per-target health and usage metrics.
//
// The engine is a library boundary, not a network protocol. It consumes
// a routing.ClientRequest produced by an external HTTP layer and returns
// a routing.Target (or a typed error); dispatching the downstream call is
// the embedding gateway's job, via its own routing.Dispatcher.
//
// Basic usage:
//
//	engine := vmroute.New()
//	_ = engine.Register(routing.Target{
//		ID:           "reasoner",
//		Name:         "DeepSeek R1",
//		Provider:     "deepseek",
//		Capabilities: []string{"chat", "thinking"},
//	})
//	target, err := engine.Route(&routing.ClientRequest{
//		Method: "POST",
//		Path:   "/v1/chat/completions",
//		Body:   payload,
//	})
//
// All methods are safe for concurrent use. Routing is synchronous and
// non-suspending: with the default in-memory metrics store no call
// performs I/O. The optional Redis metrics store trades that guarantee
// for counters shared across gateway instances.
package vmroute
