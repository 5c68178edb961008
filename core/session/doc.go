// Package session persists wallpaper-site sessions in a shared relational
// store instead of per-process memory.
//
// The package has four parts:
//
//   - Codec: Encode and Decode convert an ordered Values mapping to and from
//     the typed key|tag:value; wire format stored in the payload column.
//   - Store: persistence interface (Read, Get, Write as upsert, Destroy, GC)
//     with MemoryStore for development and tests. The PostgreSQL
//     implementation lives in integration/sessionstore/pgstore.
//   - Manager: lifecycle operations on a per-request *State (Init, Write,
//     BindUser, ValidateDrift, Touch, Destroy, GC).
//   - Admin: Stats, ListActive, CleanupExpired and ClearAll for dashboards.
//
// # Request Flow
//
//	st := session.NewState(idFromCookie, session.ClientMeta{IP: ip, UserAgent: ua})
//	_ = mgr.Init(ctx, st)
//	ctx = session.WithState(ctx, st)
//	// ... handler reads and mutates st.Values() ...
//	_ = mgr.Write(ctx, st)
//
// The sessiontransport package wires this into net/http middleware.
//
// # Login
//
// BindUser persists the bound fields, then rotates the identifier, writes the
// state under the new identifier and deletes the old row, so an identifier
// known before login never carries authenticated state afterwards:
//
//	if err := mgr.BindUser(ctx, st, userID, extra); err != nil {
//		// ErrRotationVerification: treat as failed login
//	}
//
// # Failure Handling
//
// Store failures never fail a request. Init and Write fall back to an
// ephemeral in-memory session and log the failure; undecodable payloads start
// an empty mapping. Audit notifications are best effort. Only a rotation whose
// bound fields cannot be verified is returned to the caller.
//
// # Concurrency
//
// Manager is safe for concurrent use. State belongs to one request. Writes
// to the same identifier from parallel requests are last-writer-wins.
// BindUser holds no lock across persist and rotate, so a plain Write under
// the pre-login identifier running in parallel with a login can recreate
// the old row with anonymous state.
package session
