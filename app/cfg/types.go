package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	FeedsDir        string
	FeedRoot        string
	Port            string
	WorkerCount     int
	UpdateSchedule  string
	ExtractSchedule string
	APIAccessKey    string

	// Retrieval configuration
	UserAgent string
	Timeout   int

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
