package gate

// Host is one configured target alias. A host's profile/region beat the
// CLI-level defaults so operators can keep per-environment targets in
// config and address them by alias alone.
type Host struct {
	Alias   string `mapstructure:"alias"`
	Name    string `mapstructure:"name"`
	Profile string `mapstructure:"profile"`
	Region  string `mapstructure:"region"`
}

func LookupHost(hosts []Host, alias string) (Host, bool) {
	for _, host := range hosts {
		if host.Alias == alias {
			return host, true
		}
	}
	return Host{}, false
}

// ResolveTarget applies a configured host alias, when one matches, over the
// identifier and ambient profile/region.
func ResolveTarget(hosts []Host, identifier, profile, region string) (string, string, string) {
	host, ok := LookupHost(hosts, identifier)
	if !ok {
		return identifier, profile, region
	}

	name := host.Name
	if name == "" {
		name = identifier
	}
	if host.Profile != "" {
		profile = host.Profile
	}
	if host.Region != "" {
		region = host.Region
	}
	return name, profile, region
}
