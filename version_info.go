package wikid

import "pkt.systems/wikid/internal/version"

// Version reports the running wikid build: the string stamped via -ldflags
// when present, otherwise whatever module build info carries.
func Version() string {
	return version.Current()
}
