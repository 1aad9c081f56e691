// Package httpapi exposes the recommendation pipeline over HTTP using a chi router.
//
// Routes:
//
//	POST /recommend                               run intent, recommendation and availability
//	POST /where_to_watch?movie_id=ID&region=XX    availability for a single item
//	GET  /healthz                                 liveness and registered bus handlers
//	GET  /metrics                                 Prometheus exposition, when configured
//
// Client errors answer 400 with {"detail": reason}, malformed or invalid input
// answers 422 and anything else answers an opaque 500.
package httpapi
