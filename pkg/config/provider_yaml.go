package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Libraries   []LibraryYAML    `yaml:"libraries"`
		Fitting     FittingYAML      `yaml:"fitting,omitempty"`
		Storage     StorageYAML      `yaml:"storage,omitempty"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
	}

	if err := yaml.Unmarshal(cfgFile, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Libraries:   make([]LibraryData, len(yamlConfig.Libraries)),
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, lib := range yamlConfig.Libraries {
		config.Libraries[i] = LibraryData{
			Name:       lib.Name,
			Patterns:   lib.Patterns,
			Phases:     lib.Phases,
			Wavelength: lib.Wavelength,
		}
	}

	f := yamlConfig.Fitting
	config.Fitting = FittingData{
		Standard:     f.Standard,
		StandardConc: f.StandardConc,
		Align:        f.Align,
		Shift:        f.Shift,
		Harmonise:    f.Harmonise,
		Closed:       f.Closed,
		OmitStandard: f.OmitStandard,
		Solver:       f.Solver,
		Objective:    f.Objective,
		LOD:          f.LOD,
		Force:        f.Force,
		Amorphous:    f.Amorphous,
		AmorphousLOD: f.AmorphousLOD,
		Workers:      f.Workers,
	}

	// Convert storage
	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{Path: yamlConfig.Storage.SQLite.Path}
	}
	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}

	// Convert controllers
	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}

		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				Cert:       controller.RESTServer.Cert,
				Key:        controller.RESTServer.Key,
				Port:       controller.RESTServer.Port,
				ListenAddr: controller.RESTServer.ListenAddr,
				AuthToken:  controller.RESTServer.AuthToken,
			}
		}

		if controller.GRPC != nil {
			config.Controllers[i].GRPC = &GRPCData{
				Cert:       controller.GRPC.Cert,
				Key:        controller.GRPC.Key,
				Port:       controller.GRPC.Port,
				ListenAddr: controller.GRPC.ListenAddr,
			}
		}

		if controller.Watcher != nil {
			config.Controllers[i].Watcher = &WatcherData{
				Inbox:     controller.Watcher.Inbox,
				Library:   controller.Watcher.Library,
				Pattern:   controller.Watcher.Pattern,
				Debounce:  controller.Watcher.Debounce,
				Processed: controller.Watcher.Processed,
			}
		}
	}

	y.config = config
	return config, nil
}

// load returns the cached configuration, reading the file on first use
func (y *YAMLProvider) load() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}
	return y.LoadConfig()
}

// GetLibraries returns library configurations
func (y *YAMLProvider) GetLibraries() ([]LibraryData, error) {
	config, err := y.load()
	if err != nil {
		return nil, err
	}
	return config.Libraries, nil
}

// GetFitting returns the fit defaults
func (y *YAMLProvider) GetFitting() (*FittingData, error) {
	config, err := y.load()
	if err != nil {
		return nil, err
	}
	return &config.Fitting, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	config, err := y.load()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	config, err := y.load()
	if err != nil {
		return nil, err
	}
	return config.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with YAML tags
type LibraryYAML struct {
	Name       string  `yaml:"name"`
	Patterns   string  `yaml:"patterns"`
	Phases     string  `yaml:"phases"`
	Wavelength float64 `yaml:"wavelength,omitempty"`
}

type FittingYAML struct {
	Standard     string   `yaml:"std,omitempty"`
	StandardConc float64  `yaml:"std_conc,omitempty"`
	Align        float64  `yaml:"align,omitempty"`
	Shift        float64  `yaml:"shift,omitempty"`
	Harmonise    bool     `yaml:"harmonise,omitempty"`
	Closed       bool     `yaml:"closed,omitempty"`
	OmitStandard bool     `yaml:"omit_std,omitempty"`
	Solver       string   `yaml:"solver,omitempty"`
	Objective    string   `yaml:"objective,omitempty"`
	LOD          float64  `yaml:"lod,omitempty"`
	Force        []string `yaml:"force,omitempty"`
	Amorphous    []string `yaml:"amorphous,omitempty"`
	AmorphousLOD float64  `yaml:"amorphous_lod,omitempty"`
	Workers      int      `yaml:"workers,omitempty"`
}

type StorageYAML struct {
	SQLite      *SQLiteYAML      `yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type ControllerYAML struct {
	Type       string          `yaml:"type,omitempty"`
	RESTServer *RESTServerYAML `yaml:"rest,omitempty"`
	GRPC       *GRPCYAML       `yaml:"grpc,omitempty"`
	Watcher    *WatcherYAML    `yaml:"watcher,omitempty"`
}

type RESTServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	AuthToken  string `yaml:"auth-token,omitempty"`
}

type GRPCYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}

type WatcherYAML struct {
	Inbox     string `yaml:"inbox"`
	Library   string `yaml:"library"`
	Pattern   string `yaml:"pattern,omitempty"`
	Debounce  string `yaml:"debounce,omitempty"`
	Processed string `yaml:"processed,omitempty"`
}
