// File: http1/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package http1 implements the HTTP/1.1 Processor of spec §4.3/§6: it
// drives an httpparse.InputBuffer over an endpoint.ChannelWrapper,
// builds a container.Request, runs it through the Engine's pipeline,
// and serializes the container.Response back onto the wire. It
// implements endpoint.Handler, closing the loop spec §2 describes
// between the NIO Endpoint and the Container Pipeline.
package http1
