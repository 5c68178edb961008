// Package clientip extracts the client IP address from HTTP requests.
//
// The session layer records this address on every write and compares it on
// later requests to detect client drift, so it has to see through the CDN and
// load balancer in front of the site.
//
// # Header Priority
//
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For, leftmost hop
//  4. X-Real-IP (nginx)
//  5. RemoteAddr
//
// Every candidate is parsed with net.ParseIP and normalized; invalid values
// and 0.0.0.0 are skipped. If nothing valid is found the raw RemoteAddr is
// returned.
//
//	ip := clientip.GetIP(r)
package clientip
