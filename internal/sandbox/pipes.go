package sandbox

import "bytes"

// pipes bundles the three in-memory byte channels a run's WASI
// environment is bound to. The run model is fully synchronous (§5):
// stdin is filled once before invocation and never touched again;
// stdout/stderr are written only by the guest during the single
// blocking _start call and drained only after it returns. That
// invariant is why plain buffers suffice in place of true concurrent
// pipes — there is never a reader and a writer racing on the same
// buffer.
type pipes struct {
	stdin  *bytes.Reader
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newPipes(stdin string) *pipes {
	return &pipes{
		stdin:  bytes.NewReader([]byte(stdin + "\n")),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}
