package pipeline

// State is the progress of a run.
type State int

const (
	// Start is the state before any step succeeded.
	Start State = iota
	// HeaderUpdated is reached once the frame header has been rewritten.
	HeaderUpdated
	// Uploaded is reached once the frame is in the object store.
	Uploaded
	// Registered is the final state of a successful run.
	Registered
	// Failed is the final state of a run with a failed step.
	Failed
)

func (s State) String() string {
	switch s {
	case Start:
		return "Start"
	case HeaderUpdated:
		return "HeaderUpdated"
	case Uploaded:
		return "Uploaded"
	case Registered:
		return "Registered"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Step is a step of a run.
type Step string

const (
	// StepPrepare checks the frame and loads its metadata.
	StepPrepare Step = "prepare"
	// StepRewriteHeader replaces the frame header.
	StepRewriteHeader Step = "rewrite-header"
	// StepUpload stores the frame in the object store.
	StepUpload Step = "upload"
	// StepRegister registers the frame with the archive.
	StepRegister Step = "register"
)

// Description returns a short human readable description of the step.
func (s Step) Description() string {
	switch s {
	case StepPrepare:
		return "Load metadata"
	case StepRewriteHeader:
		return "Update FITS header"
	case StepUpload:
		return "Upload to object store"
	case StepRegister:
		return "Register with science archive"
	default:
		return string(s)
	}
}
