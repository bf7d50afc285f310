package app

// Stage names the phase an operation is in when a progress record is emitted.
type Stage string

const (
	StageInitializing          Stage = "initializing"
	StageResolvingDependencies Stage = "resolving-dependencies"
	StageDownloading           Stage = "downloading"
	StageVerifying             Stage = "verifying"
	StageInstalling            Stage = "installing"
	StageUpdatingState         Stage = "updating-state"
	StageCompleted             Stage = "completed"
	StageFailed                Stage = "failed"
	StageUninstalling          Stage = "uninstalling"
)

// Percent-complete checkpoints emitted before each pipeline phase.
const (
	PercentInitializing          = 0
	PercentResolvingDependencies = 10
	PercentDownloading           = 30
	PercentVerifying             = 70
	PercentInstalling            = 80
	PercentUpdatingState         = 95
	PercentCompleted             = 100
)

// Progress is an observational record pushed to progress sinks. It is never
// read back by the orchestrator.
type Progress struct {
	AppID           string
	Stage           Stage
	Percent         int
	Message         string
	BytesDownloaded int64
	BytesTotal      int64
	Done            bool
	Error           string
}

// Terminal reports whether the record ends the pipeline of its application.
func (p Progress) Terminal() bool {
	return p.Stage == StageCompleted || p.Stage == StageFailed
}
