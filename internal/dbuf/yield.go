package dbuf

import "runtime"

// yield cooperatively hands off the processor at every spin-wait
// point; no OS-level blocking primitive is involved.
func yield() {
	runtime.Gosched()
}
