// Package verification drives the multi-step OTP enrollment state machine.
//
// A session moves awaiting_email → awaiting_email_otp → awaiting_phone →
// awaiting_phone_otp → awaiting_consent → committed, with abandoned reachable
// from any non-terminal step (lockout or TTL expiry). Sessions store only
// code hashes, never plaintext codes; the session store owns TTL eviction.
//
// Package rules:
//   - The Manager owns all session mutation. Handlers and stores treat
//     sessions as opaque snapshots.
//   - Issuance and verification are separate operations so resend and
//     lockout policy apply per channel independently.
//   - Commit is idempotent: a committed session returns the subscriber it
//     produced on every subsequent commit call.
package verification
