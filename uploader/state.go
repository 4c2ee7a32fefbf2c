package uploader

// State is the externally observable state of an Uploader.
type State int

const (
	// StateNew is the state before Initialize.
	StateNew State = iota
	// StateInitialized is the state between Initialize and Start.
	StateInitialized
	// StateIdle means the worker is waiting for a chunk.
	StateIdle
	// StateUploading means a chunk was accepted and is not released yet.
	StateUploading
	// StateStopRequested means Stop was called and the worker has not exited.
	StateStopRequested
	// StateStopped means the worker has exited.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInitialized:
		return "initialized"
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateStopRequested:
		return "stop requested"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// lifecycle is the stored part of the state. Idle and Uploading are derived
// from the exchange buffer, which is locked exactly while a chunk is pending.
type lifecycle int

const (
	lifecycleNew lifecycle = iota
	lifecycleInitialized
	lifecycleRunning
	lifecycleStopping
	lifecycleStopped
)

// SubmitStatus is the outcome of Submit.
type SubmitStatus int

const (
	// SubmitRejected is returned together with an error.
	SubmitRejected SubmitStatus = iota
	// SubmitAccepted means the chunk now sits in the exchange buffer.
	SubmitAccepted
	// SubmitBusy means the slot is occupied; the caller should retry later.
	SubmitBusy
)

func (s SubmitStatus) String() string {
	switch s {
	case SubmitAccepted:
		return "accepted"
	case SubmitBusy:
		return "busy"
	default:
		return "rejected"
	}
}
