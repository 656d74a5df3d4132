package manifest

import (
	"fmt"
	"runtime"

	"github.com/conn-castle/shovel/internal/messages"
)

// Arch is a manifest architecture key.
type Arch string

const (
	Arch32    Arch = "32bit"
	Arch64    Arch = "64bit"
	ArchARM64 Arch = "arm64"
)

// Arches lists every architecture in the order they are validated.
var Arches = []Arch{Arch64, Arch32, ArchARM64}

var goarchToArch = map[string]Arch{
	"386":   Arch32,
	"amd64": Arch64,
	"arm64": ArchARM64,
}

// ParseArch parses a manifest architecture key.
func ParseArch(s string) (Arch, error) {
	for _, arch := range Arches {
		if string(arch) == s {
			return arch, nil
		}
	}
	return "", fmt.Errorf(messages.ManifestUnknownArchFmt, s)
}

// NativeArch returns the architecture of the running binary.
func NativeArch() Arch {
	return archForGOARCH(runtime.GOARCH)
}

func archForGOARCH(goarch string) Arch {
	if arch, ok := goarchToArch[goarch]; ok {
		return arch
	}
	return Arch64
}

// CompatibleArches returns native followed by the architectures that can run
// on it, most preferred first.
func CompatibleArches(native Arch) []Arch {
	switch native {
	case ArchARM64:
		return []Arch{ArchARM64, Arch64, Arch32}
	case Arch64:
		return []Arch{Arch64, Arch32}
	default:
		return []Arch{native}
	}
}
