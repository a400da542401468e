// Package platform detects the client platform from its User-Agent and gives the matching app installation steps.
package platform

import "regexp"

const (
	IOS     = "ios"
	Android = "android"
	Desktop = "desktop"
)

var (
	mobileRe  = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
	iosRe     = regexp.MustCompile(`(?i)iPad|iPhone|iPod`)
	androidRe = regexp.MustCompile(`(?i)Android`)
)

type Instructions struct {
	Platform string   `json:"platform"`
	Mobile   bool     `json:"mobile"`
	Title    string   `json:"title"`
	Steps    []string `json:"steps"`
}

// Detect returns the platform of the User-Agent `ua` and whether it is a mobile device.
func Detect(ua string) (platform string, mobile bool) {
	mobile = mobileRe.MatchString(ua)
	switch {
	case iosRe.MatchString(ua):
		return IOS, true
	case androidRe.MatchString(ua):
		return Android, true
	default:
		return Desktop, mobile
	}
}

func InstallInstructions(ua string) Instructions {
	p, mobile := Detect(ua)
	ins := Instructions{Platform: p, Mobile: mobile}

	switch p {
	case IOS:
		ins.Title = "To install this app on your iOS device:"
		ins.Steps = []string{
			"Tap the Share button (square with arrow up)",
			`Scroll down and tap "Add to Home Screen"`,
			`Tap "Add" to install`,
		}
	case Android:
		ins.Title = "To install this app on your Android device:"
		ins.Steps = []string{
			"Tap the menu button (⋮) in your browser",
			`Look for "Add to Home screen" or "Install app"`,
			"Tap it to install the app",
		}
	default:
		ins.Title = "To install this app:"
		ins.Steps = []string{
			"Look for the install icon in your browser address bar",
			"Click it to install the app",
			"Or use your browser's menu to add to home screen",
		}
	}
	return ins
}
