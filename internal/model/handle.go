package model

// Handle is the opaque, stable reference callers use to pause, resume, or
// stop a download across process restarts.
type Handle struct {
	ID        string
	SourceURL string
}

// StorageResolution is the storage resolver's output, carried unchanged
// through the rest of a session's lifetime.
type StorageResolution struct {
	Directory        string `json:"directory"`
	File             string `json:"file"`
	OverwroteExisting bool  `json:"overwroteExisting"`
}

// Progress is a derived, point-in-time snapshot; it is never persisted.
type Progress struct {
	BytesDownloaded uint64
	TotalBytes      *uint64
	ChunkIndex      uint32
	BytesPerSecond  *float64
	RemainingBytes  *uint64
	Percent         *float64
}

// StatusKind tags the lifecycle state carried by Status.
type StatusKind string

const (
	StatusQueued    StatusKind = "queued"
	StatusRunning   StatusKind = "running"
	StatusCompleted StatusKind = "completed"
	StatusFailed    StatusKind = "failed"
	StatusCancelled StatusKind = "cancelled"
)

// Status is the tagged lifecycle value described in the data model.
type Status struct {
	Kind     StatusKind
	Progress Progress       // valid when Kind == StatusRunning
	Path     string         // valid when Kind == StatusCompleted
	Err      *DownloadError // valid when Kind == StatusFailed
}

// SessionReason records why a session's task tree is being torn down, read
// by the retry driver *before* it observes the cancellation signal so that
// pause and stop can be told apart.
type SessionReason string

const (
	ReasonRunning        SessionReason = "running"
	ReasonPauseRequested SessionReason = "pause_requested"
	ReasonStopRequested  SessionReason = "stop_requested"
)

// PausedSnapshot is the durable record written on pause and replayed on
// resume, matching the persisted paused_states/<id>.json schema.
type PausedSnapshot struct {
	HandleID       string            `json:"handleId"`
	Request        Request           `json:"request"`
	Resolution     StorageResolution `json:"resolution"`
	CompletedBytes uint64            `json:"completedBytes"`
	ChunkStates    []ChunkState      `json:"chunkStates"`
}
