// Package httpapi exposes the gift exchange over JSON HTTP.
//
// Routes:
//
//	POST /api/register               {name} -> 201 {token}
//	GET  /api/status                 event flags and participant count
//	GET  /api/participants/{token}   own record and, once ready, the recipient
//	GET  /api/admin/participants     full listing (X-Admin-Secret)
//	POST /api/admin/shuffle          assign recipients (X-Admin-Secret)
//	POST /api/admin/reopen           clear assignments (X-Admin-Secret)
//	GET  /healthz
//
// Errors are returned as {"error": message} with the status derived from the
// exchange error kind.
package httpapi
