package dicomweb

import (
	"fmt"
	"sync/atomic"
)

// Retrieved instances are wrapped into uniquely named synthetic files so the
// generic classification path treats them like any locally opened file.
var syntheticCounter atomic.Uint64

func nextSyntheticName() string {
	return fmt.Sprintf("dicomweb.%d.dcm", syntheticCounter.Add(1))
}
