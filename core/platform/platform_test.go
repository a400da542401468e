package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name         string
		ua           string
		wantPlatform string
		wantMobile   bool
	}{
		{
			name:         "iphone",
			ua:           "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
			wantPlatform: IOS,
			wantMobile:   true,
		},
		{
			name:         "ipad",
			ua:           "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko)",
			wantPlatform: IOS,
			wantMobile:   true,
		},
		{
			name:         "lower-case android",
			ua:           "Dalvik/2.1.0 (Linux; U; android 12; SM-A525F)",
			wantPlatform: Android,
			wantMobile:   true,
		},
		{
			name:         "upper-case iphone",
			ua:           "MYAPP/1.0 (IPHONE; IOS 17.2)",
			wantPlatform: IOS,
			wantMobile:   true,
		},
		{
			name:         "android",
			ua:           "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36",
			wantPlatform: Android,
			wantMobile:   true,
		},
		{
			name:         "blackberry",
			ua:           "Mozilla/5.0 (BlackBerry; U; BlackBerry 9900; en) AppleWebKit/534.11+",
			wantPlatform: Desktop,
			wantMobile:   true,
		},
		{
			name:         "desktop",
			ua:           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			wantPlatform: Desktop,
		},
		{name: "empty", wantPlatform: Desktop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, mobile := Detect(tt.ua)
			assert.Equal(t, tt.wantPlatform, p)
			assert.Equal(t, tt.wantMobile, mobile)
		})
	}
}

func TestInstallInstructions(t *testing.T) {
	ins := InstallInstructions("Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X)")
	assert.Equal(t, IOS, ins.Platform)
	assert.Equal(t, "To install this app on your iOS device:", ins.Title)
	assert.Len(t, ins.Steps, 3)
	assert.Contains(t, ins.Steps[1], "Add to Home Screen")

	ins = InstallInstructions("")
	assert.Equal(t, "To install this app:", ins.Title)
	assert.False(t, ins.Mobile)
}
