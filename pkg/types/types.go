package types

// Model describes a model known to the scheduler ahead of time. Entries come
// from an optional registry file and pre-seed footprint discovery.
type Model struct {
	// Stable identifier, e.g. an ollama tag.
	ID string `json:"id" yaml:"id" toml:"id"`
	// Human-friendly name.
	Name string `json:"name,omitempty" yaml:"name" toml:"name"`
	// Known VRAM footprint in megabytes. Zero means discover on first load.
	FootprintMB int64 `json:"footprint_mb,omitempty" yaml:"footprint_mb" toml:"footprint_mb"`
}

// LoadRequest asks the scheduler to make a model resident.
type LoadRequest struct {
	Model string `json:"model"`
}

// LoadResponse reports the admission outcome for a load request.
type LoadResponse struct {
	Model   string `json:"model"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// DoneRequest signals that one inference unit against a model finished.
type DoneRequest struct {
	Model string `json:"model"`
}

// RecordStatus is the externally visible view of one ledger record.
type RecordStatus struct {
	ModelID        string `json:"model_id"`
	State          string `json:"state"`
	FootprintBytes int64  `json:"footprint_bytes"`
	ActiveRefcount int    `json:"active_refcount"`
	LastActiveAt   int64  `json:"last_active_at"`
}

// SnapshotResponse is a consistent read of the VRAM ledger for /v1/snapshot.
type SnapshotResponse struct {
	CapacityBytes int64          `json:"capacity_bytes"`
	UsedBytes     int64          `json:"used_bytes"`
	FreeBytes     int64          `json:"free_bytes"`
	Records       []RecordStatus `json:"records"`
}

// ErrorResponse is the uniform JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
