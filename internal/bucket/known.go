package bucket

// Known is a well-known community bucket that can be added by name alone.
type Known struct {
	Name   string
	Remote string
}

var knownBuckets = []Known{
	{Name: "main", Remote: "https://github.com/ScoopInstaller/Main"},
	{Name: "extras", Remote: "https://github.com/ScoopInstaller/Extras"},
	{Name: "versions", Remote: "https://github.com/ScoopInstaller/Versions"},
	{Name: "nirsoft", Remote: "https://github.com/ScoopInstaller/Nirsoft"},
	{Name: "sysinternals", Remote: "https://github.com/niheaven/scoop-sysinternals"},
	{Name: "php", Remote: "https://github.com/ScoopInstaller/PHP"},
	{Name: "nerd-fonts", Remote: "https://github.com/matthewjberger/scoop-nerd-fonts"},
	{Name: "nonportable", Remote: "https://github.com/ScoopInstaller/Nonportable"},
	{Name: "java", Remote: "https://github.com/ScoopInstaller/Java"},
	{Name: "games", Remote: "https://github.com/Calinou/scoop-games"},
}

// KnownBuckets returns the well-known buckets in display order.
func KnownBuckets() []Known {
	return append([]Known(nil), knownBuckets...)
}

// KnownRemote returns the remote for a well-known bucket name.
func KnownRemote(name string) (string, bool) {
	for _, known := range knownBuckets {
		if known.Name == name {
			return known.Remote, true
		}
	}
	return "", false
}
