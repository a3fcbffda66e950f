package localfs

// Config defines the local disk blob store.
type Config struct {
	// Root is the directory holding all blobs. It is created on startup.
	Root string `yaml:"root" default:"/tmp/files_manager"`
}
