// File: endpoint/util.go
// Author: momentics <momentics@gmail.com>

package endpoint

import "time"

func nsToDuration(ns int64) time.Duration { return time.Duration(ns) }
