// Package campaign implements campaign lifecycle management.
//
// The service layer owns the campaign status machine: creation in draft,
// scheduling, the pause/resume/cancel gates, and terminal immutability. The
// dispatch fan-out itself lives in internal/dispatch; this package only
// validates and records transitions. It depends on repository interfaces
// defined in this package and should never import from api/.
//
// Repository implementations live in repository/postgres/.
package campaign
