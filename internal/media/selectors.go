package media

import "github.com/ibeckermayer/xpilot/internal/browser"

// Composer media selectors. Each list is tried in order.
var (
	// FileInput is the hidden upload input of the composer.
	FileInput = browser.CSS(
		`input[type="file"][data-testid="fileInput"]`,
		`input[type="file"]`,
	)

	// Preview matches an attached image or video thumbnail.
	Preview = browser.CSS(
		`div[data-testid="attachments"]`,
		`div[data-testid="tweetPhoto"]`,
		`div[data-testid="tweetPhotoContainer"]`,
		`div[data-testid="mediaContainer"]`,
		`div[data-testid="videoPlayer"]`,
		`div[data-testid="videoComponent"]`,
		`#layers video`,
		`#layers img[src^="blob:"]`,
	)

	// RemoveControl only exists once an attachment is in the composer.
	RemoveControl = browser.CSS(
		`#layers [aria-label="Remove"]`,
		`[aria-label="Remove media"]`,
		`[aria-label="إزالة"]`,
		`[aria-label="حذف"]`,
		`#layers [data-testid*="remove"]`,
	)

	// BusyIndicator matches upload or processing indicators.
	BusyIndicator = browser.CSS(
		`div[data-testid="mediaUploadProgress"]`,
		`#layers div[data-testid="mediaUploadProgress"]`,
		`div[data-testid="attachments"] [role="progressbar"]`,
		`div[data-testid="mediaContainer"] [role="progressbar"]`,
		`div[data-testid="tweetPhotoContainer"] [role="progressbar"]`,
		`div[data-testid="videoPlayer"] [role="progressbar"]`,
		`div[aria-label*="Uploading"]`,
		`div[aria-label*="Processing"]`,
		`div[aria-label*="رفع"]`,
		`div[aria-label*="معالجة"]`,
		`svg[aria-label*="Uploading"]`,
		`svg[aria-label*="Processing"]`,
		`svg[aria-label*="رفع"]`,
		`svg[aria-label*="معالجة"]`,
	)
)
