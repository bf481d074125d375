package config

// Subscription is one feed subscription, loaded from a YAML file in the
// feeds directory. The file name (without extension) is the subscription
// name; the URL identifies the feed everywhere else.
type Subscription struct {
	Name           string         `yaml:"-"`
	URL            string         `yaml:"url"`
	UserTitle      string         `yaml:"user_title"`
	Enabled        *bool          `yaml:"enabled"`
	ExtractContent bool           `yaml:"extract_content"`
	Tags           map[string]any `yaml:"tags"`
}

// UpdatesEnabled reports whether the feed should be updated; subscriptions
// are enabled unless the file says otherwise.
func (s *Subscription) UpdatesEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}
