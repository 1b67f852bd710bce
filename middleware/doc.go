// Package middleware adapts a Tanglr session to plain net/http clients.
//
// [Transport] is an [http.RoundTripper] that attaches the session's access
// token to outgoing requests and, on a 401, joins the client's coordinated
// refresh and replays the request once. It lets callers reach endpoints the
// facade does not wrap while keeping the single-flight refresh guarantee.
//
// Requests that already carry an Authorization header keep it for the first
// attempt. Requests with a body are replayed only when [http.Request.GetBody]
// is set, as it is for requests built by [http.NewRequest] from common body
// types.
package middleware
