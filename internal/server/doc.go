// Package server provides the read-only status server of the publication engine.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] is applied so that the first one added is the outermost, matching the order of [BasicRouter.Use] calls.
//
// [BasicRouter] registers method-qualified [http.ServeMux] patterns, so the mux answers 405 and HEAD itself.
//
// # Routes
//
//	GET /healthz           database reachability
//	GET /metrics           Prometheus exposition of the engine counters
//	GET /api/publications  publication report, filtered by ?status= and encoded by ?format=
//
// # Handler Interface
//
// A [Handler] reports its own patterns through Routes, so the publications endpoint keeps its
// method and path next to the code that serves it.
//
// [Serve] runs the listener until its context is canceled and then shuts down gracefully.
package server
