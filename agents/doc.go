// Package agents holds the three pipeline handlers that are reachable on the bus:
// intent normalization, candidate recommendation and availability lookup.
//
// Handler-level faults (an unknown seed, an unknown genre, a missing item id) are
// reported as replies with an error status, never as Go errors. Go errors are
// reserved for catalog transport failures.
package agents
