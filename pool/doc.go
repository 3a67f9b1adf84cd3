// File: pool/doc.go
// Package pool
// Author: momentics <momentics@gmail.com>
//
// Bounded LIFO object and buffer pools shared by the endpoint: reusable
// byte buffers and a generic LIFOPool (the endpoint caches
// ChannelWrappers and secondary selectors in it); Poller Events and
// Socket Processors are not pooled. Overflow on push
// discards the object (the GC reclaims it); underflow on pop returns
// the zero value so callers allocate fresh. All pools are safe for
// concurrent use by many producers and consumers.
package pool
