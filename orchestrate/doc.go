// Package orchestrate dispatches a classified query to its tool adapters.
//
// A Registry resolves every Binding once at startup: the adapter, its cache
// category and the resilience Guard protecting its upstream. An Orchestrator
// runs one Invocation per target category concurrently, each through the
// cache manager first and the guard only on a miss, and aggregates the
// outcomes into an envelope.Envelope.
//
// Dispatch never fails. Validation errors, upstream errors, timeouts and
// recovered panics are recorded on the failing category only.
//
// # Usage
//
//	registry, err := orchestrate.NewRegistry(manager, limiters,
//		orchestrate.Binding{
//			Adapter:   weatherAdapter,
//			RateLimit: orchestrate.RateLimit{Budget: 10, Window: time.Second},
//		},
//	)
//	if err != nil {
//		return err
//	}
//	orch := orchestrate.New(classifier, registry, orchestrate.Config{})
//	env := orch.Handle(ctx, orchestrate.Request{Query: "Quelle est la météo à Dourdan ?"})
package orchestrate
