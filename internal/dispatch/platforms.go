package dispatch

import (
	"net/url"
	"strings"

	"github.com/truongvando/ezstream-sub000/internal/models"
)

// SupportsBackupIngest reports whether the platform publishes a backup
// ingest endpoint the dispatcher may retry against. Custom RTMP targets
// have no known alternate, so a failed start fails fast.
func SupportsBackupIngest(platform models.Platform) bool {
	switch platform {
	case models.PlatformYouTube, models.PlatformFacebook, models.PlatformTwitch:
		return true
	}
	return false
}

// BackupIngestURL derives the platform's backup ingest URL from the primary
// one. Returns false when the platform has no backup or the URL cannot be
// rewritten.
func BackupIngestURL(platform models.Platform, primary string) (string, bool) {
	if !SupportsBackupIngest(platform) {
		return "", false
	}

	u, err := url.Parse(primary)
	if err != nil {
		return "", false
	}

	switch platform {
	case models.PlatformYouTube:
		// a.rtmp.youtube.com pairs with b.rtmp.youtube.com?backup=1.
		if !strings.Contains(u.Host, "a.rtmp.youtube.com") {
			return "", false
		}
		u.Host = strings.Replace(u.Host, "a.rtmp.youtube.com", "b.rtmp.youtube.com", 1)
		q := u.Query()
		q.Set("backup", "1")
		u.RawQuery = q.Encode()
	case models.PlatformFacebook:
		if !strings.Contains(u.Host, "live-api-s.facebook.com") {
			return "", false
		}
		u.Host = strings.Replace(u.Host, "live-api-s.facebook.com", "live-api-s-backup.facebook.com", 1)
	case models.PlatformTwitch:
		// Twitch exposes a region-neutral fallback alongside the assigned
		// regional ingest.
		if strings.Contains(u.Host, "live.twitch.tv") {
			return "", false
		}
		u.Host = "live.twitch.tv"
	default:
		return "", false
	}

	return u.String(), true
}
