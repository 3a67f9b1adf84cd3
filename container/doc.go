// File: container/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package container implements the nested container hierarchy of
// spec §4.7: engine -> host(s) -> context(s) -> wrapper(s), each
// owning a Pipeline of Valves dispatched chain-of-responsibility
// style, terminated by a mandatory basic valve. Per spec §9's design
// note, the deep inheritance hierarchy collapses to one Container
// capability and one Valve capability; concrete kinds differ only in
// basic valve and child-key semantics.
package container
