// File: container/access_log.go
// Author: momentics <momentics@gmail.com>
//
// AccessLogValve is the per-request access-logging stage the spec's
// Container pipeline leaves as an "e.g." (spec §4.7 mentions the
// host/context basic valves by name but the pipeline is explicitly
// open-ended above the basic valve). Placed first in a Context's
// pipeline, ahead of the basic valve, matching where Tomcat installs
// its own access log valve.
package container

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AccessLogValve logs one structured line per request with method,
// URI, status, and latency.
type AccessLogValve struct {
	BaseValve
	log *zap.Logger
}

func NewAccessLogValve(log *zap.Logger) *AccessLogValve {
	return &AccessLogValve{log: log}
}

func (v *AccessLogValve) Invoke(ctx context.Context, req *Request, resp *Response) error {
	start := time.Now()
	err := v.Next().Invoke(ctx, req, resp)
	v.log.Info("request",
		zap.String("request_id", req.ID),
		zap.String("method", req.Method),
		zap.String("uri", req.URI),
		zap.Int("status", resp.Status),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)
	return err
}
