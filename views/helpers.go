package views

import (
	"slices"

	"github.com/eringen/rescuepost"
	"github.com/eringen/rescuepost/publisher"
)

// StatusClass returns the CSS class for a status pill.
func StatusClass(s rescuepost.PostStatus) string {
	return "pill status-" + string(s)
}

// PlatformLabel is the display name of a platform.
func PlatformLabel(p publisher.Platform) string {
	switch p {
	case publisher.Facebook:
		return "Facebook"
	case publisher.Instagram:
		return "Instagram"
	case publisher.Twitter:
		return "X / Twitter"
	case publisher.LinkedIn:
		return "LinkedIn"
	}
	return string(p)
}

// HasPlatform reports whether post targets p.
func HasPlatform(post rescuepost.Post, p publisher.Platform) bool {
	return slices.Contains(post.Platforms, p)
}
