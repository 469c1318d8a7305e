package gate

import "time"

// Stage is a step of the gate's per-request state machine.
// Stages advance in declaration order and stop at the first rejection.
type Stage int

const (
	StageReceived Stage = iota
	StageFormatChecked
	StageAuthenticated
	StageQuotaChecked
	StageProduced
	StageLogged
	StageResponded
)

var stageNames = [...]string{
	"received",
	"format_checked",
	"authenticated",
	"quota_checked",
	"produced",
	"logged",
	"responded",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Audited reports whether a request that stopped at this stage gets an
// audit record. Only identified callers are audited.
func (s Stage) Audited() bool {
	return s >= StageAuthenticated
}

// Request is an inbound gated call (value type).
// This is extracted from HTTP and passed through the gate's stages.
type Request struct {
	RawKey   string
	Endpoint string
	Subject  string // may be empty

	// RequireSubject rejects an empty Subject. A non-empty Subject is
	// always validated.
	RequireSubject bool

	RemoteIP  string
	UserAgent string
	Received  time.Time
}
