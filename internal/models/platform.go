package models

// Supported platform tags. The set is closed: collectors are selected by a
// factory over exactly these values.
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformTwitter   = "twitter"
)

// Platforms lists all supported platform tags.
var Platforms = []string{
	PlatformInstagram,
	PlatformTikTok,
	PlatformYouTube,
	PlatformTwitter,
}

// ValidPlatform reports whether the given tag names a supported platform.
func ValidPlatform(platform string) bool {
	for _, p := range Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Post types. Which values occur depends on the platform (tweets on twitter,
// reels/carousels on instagram, videos elsewhere).
const (
	PostTypeImage    = "image"
	PostTypeVideo    = "video"
	PostTypeReel     = "reel"
	PostTypeTweet    = "tweet"
	PostTypeCarousel = "carousel"
)
