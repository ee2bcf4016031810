package release

import (
	"fmt"
	"strings"

	"github.com/easytier-tools/easytier-installer/internal/config"
)

// Asset describes the downloadable archive derived from a resolved
// version and platform. Pure data, no I/O.
type Asset struct {
	Version     Version
	Platform    Platform
	ArchiveName string
	DownloadURL string
	ExtractDir  string
}

// BuildAsset derives the archive name, download URL, and expected
// extraction directory for a release. Deterministic: identical inputs
// always yield identical output.
func BuildAsset(v Version, p Platform, cfg config.ReleaseConfig) Asset {
	label := p.AssetLabel()
	archive := fmt.Sprintf("easytier-linux-%s-v%s.zip", label, v)

	url := fmt.Sprintf("%s/v%s/%s", strings.TrimSuffix(cfg.DownloadBase, "/"), v, archive)
	if cfg.MirrorPrefix != "" {
		// Mirror hosts proxy the full upstream URL, e.g.
		// https://mirror.example.com/https://github.com/...
		url = strings.TrimSuffix(cfg.MirrorPrefix, "/") + "/" + url
	}

	return Asset{
		Version:     v,
		Platform:    p,
		ArchiveName: archive,
		DownloadURL: url,
		ExtractDir:  fmt.Sprintf("easytier-linux-%s", label),
	}
}
