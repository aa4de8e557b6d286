package app

// ServerConfig defines how the chat backend should run.
type ServerConfig struct {
	Addr        string
	MongoURI    string
	Database    string
	UploadDir   string
	MaxFileSize int64
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL string
	Username  string
}

const (
	// DefaultUploadDir is where uploaded files land unless configured.
	DefaultUploadDir = "uploads"
	// DefaultMaxFileSize caps a single upload at 25 MiB.
	DefaultMaxFileSize = 25 * 1024 * 1024
)
