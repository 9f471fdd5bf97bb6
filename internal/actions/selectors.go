package actions

import "github.com/ibeckermayer/xpilot/internal/browser"

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently.
// Structural data-testid queries come first; accessible names in English and
// Arabic are the fallback. Update these when actions break.

const (
	HomeURL            = "https://x.com/home"
	ProfileSettingsURL = "https://x.com/settings/profile"
	baseURL            = "https://x.com"
)

// Page readiness
var (
	// PostReady marks a loaded post page.
	PostReady = browser.CSS(`article[data-testid="tweet"]`, `article`)
	// ProfileReady marks a loaded profile page.
	ProfileReady = browser.CSS(
		`[data-testid$="-follow"]`,
		`[data-testid$="-unfollow"]`,
		`[data-testid="UserName"]`,
		`[data-testid="primaryColumn"]`,
	)
	// HomeReady marks the signed-in home timeline.
	HomeReady = browser.CSS(
		`[data-testid="SideNav_NewTweet_Button"]`,
		`[data-testid="primaryColumn"]`,
	)
	// LoginForm is only rendered when the session is gone.
	LoginForm = browser.CSS(
		`input[name="text"]`,
		`[data-testid="loginButton"]`,
	)
)

// Toggle controls
var (
	LikeButton = browser.CSS(
		`[data-testid="like"]`,
	).Then(browser.AccessibleName(`[role="button"], button`, "Like", "إعجاب", "أعجب"))

	UnlikeButton = browser.CSS(
		`[data-testid="unlike"]`,
		`[data-testid="like"]`,
	).Then(browser.AccessibleName(`[role="button"], button`, "Unlike", "Liked", "إلغاء الإعجاب", "أعجبني"))

	BookmarkButton = browser.CSS(
		`[data-testid="bookmark"]`,
	).Then(browser.AccessibleName(`[role="button"], button`, "Bookmark", "إشارة مرجعية"))

	RemoveBookmarkButton = browser.CSS(
		`[data-testid="removeBookmark"]`,
		`[data-testid="bookmark"]`,
	).Then(browser.AccessibleName(`[role="button"], button`, "Remove Bookmark", "Bookmarked", "إزالة الإشارة المرجعية"))

	FollowButton = browser.CSS(
		`[data-testid$="-follow"]`,
	).Then(browser.Role("button", "Follow", "متابعة"))

	UnfollowButton = browser.CSS(
		`[data-testid$="-unfollow"]`,
	).Then(browser.Role("button", "Following", "Unfollow", "إلغاء المتابعة", "متابَع"))

	ConfirmSheet = browser.CSS(`[data-testid="confirmationSheetConfirm"]`)
)

// Menus
var (
	Menu = browser.CSS(`div[role="menu"]`, `div[role="menuitem"]`)

	RepostButton = browser.CSS(
		`[data-testid="retweet"]`,
	).Then(browser.AccessibleName(`[role="button"], button`, "Repost", "إعادة النشر", "إعادة نشر"))

	UndoRepostButton = browser.CSS(
		`[data-testid="unretweet"]`,
	).Then(browser.AccessibleName(`[role="button"], button`, "Undo repost", "Reposted", "تراجع عن إعادة النشر"))

	RepostItem = browser.CSS(
		`[data-testid="retweetConfirm"]`,
	).Then(browser.Role("menuitem", "Repost", "إعادة النشر", "إعادة نشر"))

	UndoRepostItem = browser.CSS(
		`[data-testid="unretweetConfirm"]`,
	).Then(browser.Role("menuitem", "Undo repost", "تراجع عن إعادة النشر"))

	QuoteItem = browser.Candidates{
		browser.Role("menuitem", "Quote", "اقتباس", "اقتبس"),
	}

	ShareButton = browser.CSS(
		`[data-testid="share"]`,
	).Then(browser.AccessibleName(`[role="button"], button`, "Share post", "Share", "مشاركة", "شارك"))

	CopyLinkItem = browser.Candidates{
		browser.Role("menuitem", "Copy link", "نسخ الرابط", "نسخ رابط"),
	}

	// Caret is the overflow menu of the focused post.
	Caret = browser.CSS(
		`article[data-testid="tweet"] [data-testid="caret"]`,
		`[data-testid="caret"]`,
	).Then(browser.AccessibleName(`[role="button"], button`, "More", "المزيد"))

	DeleteItem = browser.Candidates{
		browser.Role("menuitem", "Delete", "حذف"),
	}
)

// Composer
var (
	ComposeButton = browser.CSS(
		`[data-testid="SideNav_NewTweet_Button"]`,
		`a[href="/compose/post"]`,
		`a[href="/compose/tweet"]`,
	)

	ReplyButton = browser.CSS(
		`[data-testid="reply"]`,
	).Then(browser.AccessibleName(`[role="button"], button`, "Reply", "رد"))

	Textbox = browser.CSS(
		`div[data-testid="tweetTextarea_0"][role="textbox"]`,
		`div[data-testid="tweetTextarea_0"]`,
		`[contenteditable="true"][role="textbox"]`,
	).Then(browser.AccessibleName(`[contenteditable="true"]`, "What is happening", "What's happening", "ماذا يحدث"))

	Submit = browser.CSS(
		`button[data-testid="tweetButtonInline"]`,
		`button[data-testid="tweetButton"]`,
	).Then(browser.Role("button", "Post", "Reply", "نشر", "رد"))

	ComposerDialog = browser.CSS(`div[role="dialog"]`)

	// Toast shows after a successful submit; it carries a link to the post.
	Toast     = browser.CSS(`[data-testid="toast"]`, `div[role="status"]`, `[aria-live="polite"]`, `[aria-live="assertive"]`)
	ToastLink = browser.CSS(
		`[data-testid="toast"] a[href*="/status/"]`,
		`div[role="status"] a[href*="/status/"]`,
		`[aria-live] a[href*="/status/"]`,
	)
)

// Profile editor
var (
	ProfileEditReady = browser.CSS(
		`[data-testid="Profile_Save_Button"]`,
		`input[name="displayName"]`,
	)

	NameField     = browser.CSS(`input[name="displayName"]`)
	BioField      = browser.CSS(`textarea[name="description"]`)
	LocationField = browser.CSS(`input[name="location"]`)
	WebsiteField  = browser.CSS(`input[name="url"]`)

	// The banner input precedes the avatar input in the editor.
	BannerInput = browser.CSS(
		`[data-testid="editProfileBanner"] input[type="file"]`,
		`input[data-testid="fileInput"]:first-of-type`,
	)
	AvatarInput = browser.CSS(
		`[data-testid="editProfileAvatar"] input[type="file"]`,
		`input[data-testid="fileInput"]:last-of-type`,
	)

	// CropApply closes the crop dialog shown after an image is chosen.
	CropApply = browser.CSS(
		`[data-testid="applyButton"]`,
	).Then(browser.Role("button", "Apply", "تطبيق"))

	SaveProfileButton = browser.CSS(
		`[data-testid="Profile_Save_Button"]`,
	).Then(browser.Role("button", "Save", "حفظ"))
)
