// Package dispatch calls a downstream service by logical name.
//
// A Dispatcher resolves the name through a discovery.Resolver, sends one
// HTTP request to the chosen instance and classifies the outcome:
//
//	d, err := dispatch.New(dispatch.Config{Timeout: 5 * time.Second}, resolver, metrics, log)
//	res, err := d.Call(ctx, "service2", "/service2/api/data", http.MethodGet)
//	if err != nil {
//	    server.RespondWithError(c, dispatch.ToAppError(err))
//	    return
//	}
//
// Resolution failures are returned as *ResolveError before any network I/O.
// Transport and status failures are returned as *CallError with a Kind.
// Retry is off unless Config.Retry is set; each retry resolves again and
// therefore lands on the next instance under round-robin.
package dispatch
