package types

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	ServerURL             string `yaml:"serverUrl"`
	Token                 string `yaml:"token,omitempty"`
	Username              string `yaml:"username,omitempty"`
	Password              string `yaml:"password,omitempty"`
	ChunkSizeBytes        int64  `yaml:"chunkSizeBytes"`
	ChunkThresholdBytes   int64  `yaml:"chunkThresholdBytes"` // 0 means same as chunkSizeBytes
	MaxInFlight           int    `yaml:"maxInFlight"`
	RequestsPerSecond     int    `yaml:"requestsPerSecond"` // 0 disables pacing
	MaxRetries            int    `yaml:"maxRetries"`        // 0 disables retries
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds"`
	ListenPort            int    `yaml:"listenPort"`
	UseNotify             bool   `yaml:"useNotify"`
	NotifySocket          string `yaml:"notifySocket,omitempty"`
	InsecureSkipVerify    bool   `yaml:"insecureSkipVerify,omitempty"`
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log            string
	UseConfigPath  string
	UseServerURL   string
	UseToken       string
	UseMaxInFlight int
	UseChunkSize   int64
	Upload         string // comma separated local paths; non-empty runs a one-shot upload and exits
	ParentFolderID string
	SkipNotify     bool
	ListenPort     int
}
