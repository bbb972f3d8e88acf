// Package apiclient is a generics-first framework for typed HTTP API
// clients. Methods and results are Go types; the framework builds the wire
// request, dispatches it and turns the response into a validated result or
// a typed error.
//
// A method pairs a parameter struct with a result type:
//
//	type GetPriceParams struct {
//	    IDs        []string `query:"ids"`
//	    Currencies []string `query:"vs_currencies"`
//	}
//
//	var GetPrice = apiclient.MustDeclare[GetPriceParams, Prices](
//	    apiclient.WithVerb(http.MethodGet),
//	    apiclient.WithPath("/simple/price"),
//	)
//
// A client carries the settings shared by every method:
//
//	c, err := apiclient.New("https://api.coingecko.com/api/v3",
//	    apiclient.WithGlobalFields(apiclient.Header("x-cg-demo-api-key", key)),
//	    apiclient.WithErrorKey("error"),
//	)
//	prices, err := GetPrice.Call(ctx, c, &GetPriceParams{IDs: []string{"bitcoin"}})
//
// Parameters without a location tag go to the query string for GET, HEAD,
// OPTIONS and TRACE and to the body for other verbs. Path tokens such as
// {id} are filled from placeholder, query or body values, which are
// consumed in the process.
//
// Middleware uses func(http.RoundTripper) http.RoundTripper, so logging,
// rate limiting and retries compose around the default transport.
package apiclient
