package version

// Version is the packet viewer version, overridden at build time via
// -ldflags "-X EnigmaNetz/Enigma-Packet-Viewer/internal/version.Version=..."
var Version = "dev"
