package domain

// PhaseKind names the variants of Phase.
type PhaseKind string

const (
	PhaseIdle   PhaseKind = "idle"
	PhaseActive PhaseKind = "active"
	PhaseDone   PhaseKind = "done"
	PhaseFailed PhaseKind = "failed"
)

// CompletedMessage is the progress message shown once a result arrives.
const CompletedMessage = "Processing complete"

// Phase is the job lifecycle of a session: Idle, Active, Done or Failed.
// Only those four types implement it.
type Phase interface {
	Kind() PhaseKind
	isPhase()
}

type Idle struct{}

// Active is a submitted job still waiting on the backend.
type Active struct {
	JobID    string
	Job      JobRequest
	Progress Progress
}

// Done holds the single result of a completed job.
type Done struct {
	JobID  string
	Job    JobRequest
	Result Result
}

// Failed holds the terminal error of the current attempt. Job is nil when
// the failure happened outside a job, e.g. while connecting.
type Failed struct {
	JobID   string
	Job     *JobRequest
	Failure Failure
}

func (Idle) Kind() PhaseKind   { return PhaseIdle }
func (Active) Kind() PhaseKind { return PhaseActive }
func (Done) Kind() PhaseKind   { return PhaseDone }
func (Failed) Kind() PhaseKind { return PhaseFailed }

func (Idle) isPhase()   {}
func (Active) isPhase() {}
func (Done) isPhase()   {}
func (Failed) isPhase() {}

// Snapshot is the full client state at one point in time.
type Snapshot struct {
	Connection ConnectionState
	Phase      Phase
}

// Active reports whether a job is waiting on the backend.
func (s Snapshot) Active() bool {
	_, ok := s.Phase.(Active)
	return ok
}

// Progress derives the progress bar state from the phase.
func (s Snapshot) Progress() Progress {
	switch p := s.Phase.(type) {
	case Active:
		return p.Progress
	case Done:
		return Progress{Percent: 100, Message: CompletedMessage}
	default:
		return Progress{}
	}
}

func (s Snapshot) Job() *JobRequest {
	switch p := s.Phase.(type) {
	case Active:
		job := p.Job
		return &job
	case Done:
		job := p.Job
		return &job
	case Failed:
		if p.Job == nil {
			return nil
		}
		job := *p.Job
		return &job
	default:
		return nil
	}
}

func (s Snapshot) Result() *Result {
	if done, ok := s.Phase.(Done); ok {
		result := done.Result
		return &result
	}
	return nil
}

func (s Snapshot) Failure() *Failure {
	if failed, ok := s.Phase.(Failed); ok {
		failure := failed.Failure
		return &failure
	}
	return nil
}

func (s Snapshot) JobID() string {
	switch p := s.Phase.(type) {
	case Active:
		return p.JobID
	case Done:
		return p.JobID
	case Failed:
		return p.JobID
	default:
		return ""
	}
}

// View is the flat rendering of a Snapshot sent to UI consumers.
type View struct {
	State      PhaseKind       `json:"state"`
	Connection ConnectionState `json:"connection"`
	Active     bool            `json:"active"`
	JobID      string          `json:"jobId,omitempty"`
	Job        *JobRequest     `json:"job,omitempty"`
	Title      string          `json:"title,omitempty"`
	Progress   float64         `json:"progress"`
	Message    string          `json:"message"`
	Result     *Result         `json:"result,omitempty"`
	Error      *Failure        `json:"error,omitempty"`
}

func (s Snapshot) View() View {
	phase := s.Phase
	if phase == nil {
		phase = Idle{}
		s.Phase = phase
	}
	progress := s.Progress()
	view := View{
		State:      phase.Kind(),
		Connection: s.Connection,
		Active:     s.Active(),
		JobID:      s.JobID(),
		Job:        s.Job(),
		Progress:   progress.Percent,
		Message:    progress.Message,
		Result:     s.Result(),
		Error:      s.Failure(),
	}
	if view.Job != nil {
		view.Title = view.Job.Title()
	}
	return view
}
