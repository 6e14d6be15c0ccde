package ipc

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse reports liveness and the daemon version.
type PingResponse struct {
	Alive   bool   `json:"alive"`
	Version string `json:"version"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents a daemon status snapshot.
type StatusResponse struct {
	Running       bool   `json:"running"`
	Phase         string `json:"phase"`
	PID           int    `json:"pid"`
	Indexing      bool   `json:"indexing"`
	WatcherActive bool   `json:"watcher_active"`
	FilesIndexed  int64  `json:"files_indexed"`
	TotalBytes    int64  `json:"total_bytes"`
	LastIndexedAt string `json:"last_indexed_at"`
	Uptime        string `json:"uptime"`
	Degraded      bool   `json:"degraded"`
	WatchRoot     string `json:"watch_root"`
	IndexDBPath   string `json:"index_db_path"`
	MarkerPath    string `json:"marker_path"`
}

// StartIndexingRequest launches a background scan. An empty root scans the
// configured watch root.
type StartIndexingRequest struct {
	Root    string `json:"root"`
	Rebuild bool   `json:"rebuild"`
}

// StartIndexingResponse indicates whether a scan was launched.
type StartIndexingResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopIndexingRequest cancels an in-flight scan.
type StopIndexingRequest struct{}

// StopIndexingResponse indicates stop result.
type StopIndexingResponse struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message"`
}

// StatsRequest fetches index statistics.
type StatsRequest struct{}

// StatsResponse reports aggregate index contents.
type StatsResponse struct {
	FilesIndexed  int64  `json:"files_indexed"`
	TotalBytes    int64  `json:"total_bytes"`
	LastIndexedAt string `json:"last_indexed_at"`
}

// ShutdownRequest asks the daemon to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request. The daemon exits shortly
// after the reply is written.
type ShutdownResponse struct {
	OK bool `json:"ok"`
}
