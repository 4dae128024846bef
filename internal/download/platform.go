package download

import "strings"

// Platform is the classification assigned to an inbound URL, used to
// pick the extraction strategy best suited to the hosting site.
type Platform int

const (
	// PlatformGeneric is any URL not matching a known platform; treated
	// as a single directly-fetchable image.
	PlatformGeneric Platform = iota

	// PlatformSlideshow covers sites whose "photo" posts may consist of
	// multiple images, requiring a multi-file capable extraction tool.
	PlatformSlideshow

	// PlatformSocialPhoto covers sites that hide media behind a login
	// wall and need a dedicated resolver to reach the direct image URL.
	PlatformSocialPhoto
)

func (p Platform) String() string {
	return []string{
		"GENERIC",
		"SLIDESHOW",
		"SOCIAL_PHOTO",
	}[p]
}

// ClassifyURL inspects the given URL and returns the platform it belongs
// to. Matching is case-insensitive substring containment against known
// domain fragments; anything unrecognised is classified as generic. This
// function is pure and never errors.
func ClassifyURL(url string) Platform {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "tiktok.com"):
		return PlatformSlideshow
	case strings.Contains(lower, "instagram.com"):
		return PlatformSocialPhoto
	default:
		return PlatformGeneric
	}
}
