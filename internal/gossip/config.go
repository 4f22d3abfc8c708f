package gossip

// Config holds gossip cluster configuration.
type Config struct {
	// NodeName is this agent's unique name in the cluster. Defaults to the
	// profile ID, then the hostname.
	NodeName string

	// BindAddr is the address to bind for gossip (default: "0.0.0.0").
	BindAddr string

	// BindPort is the port for gossip. Zero lets the OS pick one.
	BindPort int

	// AdvertiseAddr is the address to advertise to other nodes (for containers/NAT).
	AdvertiseAddr string

	// AdvertisePort is the port to advertise (0 = same as BindPort).
	AdvertisePort int

	// Seeds are the addresses of peers to join on startup.
	Seeds []string

	// ProfileID and GroupID are advertised in node metadata.
	ProfileID string
	GroupID   string

	// Version is the agent version advertised in node metadata.
	Version string
}
