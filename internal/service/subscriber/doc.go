// Package subscriber implements the subscriber registry: the canonical store
// of subscriber identity, channel opt-ins, preferences, and lifecycle status.
//
// The service layer owns all status transition rules and the duplicate
// enrollment check. It depends on the Repository interface defined in this
// package and should never import from api/.
//
// Repository implementations live in repository/postgres/.
package subscriber
