// Package discovery finds ASUS routers on the local network via mDNS.
//
// Routers advertise their web UI as an _http._tcp service with a
// hostname derived from the model name (e.g. "RT-AX88U-1A2B.local").
// The scanner browses for those services and filters on the hostname
// pattern, returning model, address and TXT metadata for each match.
package discovery
