// Package config loads xrdquant's configuration from YAML files or SQLite
// databases.
package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetLibraries() ([]LibraryData, error)
	GetFitting() (*FittingData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Libraries   []LibraryData    `json:"libraries"`
	Fitting     FittingData      `json:"fitting,omitempty"`
	Storage     StorageData      `json:"storage,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// LibraryData locates one reference library on disk
type LibraryData struct {
	Name       string  `json:"name"`
	Patterns   string  `json:"patterns"`
	Phases     string  `json:"phases"`
	Wavelength float64 `json:"wavelength,omitempty"`
}

// FittingData holds the defaults applied to fits requested without explicit
// options, and the size of the batch worker pool
type FittingData struct {
	Standard     string   `json:"std,omitempty"`
	StandardConc float64  `json:"std_conc,omitempty"`
	Align        float64  `json:"align,omitempty"`
	Shift        float64  `json:"shift,omitempty"`
	Harmonise    bool     `json:"harmonise,omitempty"`
	Closed       bool     `json:"closed,omitempty"`
	OmitStandard bool     `json:"omit_std,omitempty"`
	Solver       string   `json:"solver,omitempty"`
	Objective    string   `json:"objective,omitempty"`
	LOD          float64  `json:"lod,omitempty"`
	Force        []string `json:"force,omitempty"`
	Amorphous    []string `json:"amorphous,omitempty"`
	AmorphousLOD float64  `json:"amorphous_lod,omitempty"`
	Workers      int      `json:"workers,omitempty"`
}

// StorageData holds the configuration for various storage backends
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
}

// ControllerData holds the configuration for various controller backends.
// Type is rest, grpc, watcher or combined; combined serves REST and gRPC on
// the address of the rest section.
type ControllerData struct {
	Type       string          `json:"type,omitempty"`
	RESTServer *RESTServerData `json:"rest,omitempty"`
	GRPC       *GRPCData       `json:"grpc,omitempty"`
	Watcher    *WatcherData    `json:"watcher,omitempty"`
}

// Storage backend configuration structs
type SQLiteData struct {
	Path string `json:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// Controller configuration structs
type RESTServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
}

type GRPCData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// WatcherData configures the inbox directory watcher. Debounce is a
// duration string such as "2s". Processed, when set, is the directory
// fitted scans are moved to.
type WatcherData struct {
	Inbox     string `json:"inbox"`
	Library   string `json:"library"`
	Pattern   string `json:"pattern,omitempty"`
	Debounce  string `json:"debounce,omitempty"`
	Processed string `json:"processed,omitempty"`
}
