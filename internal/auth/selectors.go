package auth

import "github.com/ibeckermayer/xpilot/internal/browser"

// X.com login flow selectors
// These are isolated here because X changes their DOM frequently

// LoginURL is where every login starts.
const LoginURL = "https://x.com/i/flow/login"

var (
	UsernameField = browser.CSS(
		`input[autocomplete="username"]`,
		`input[name="text"]`,
	)

	NextButton = browser.CSS(
		`[data-testid="LoginForm_Forward_Button"]`,
	).Then(
		browser.Role("button", "Next", "التالي"),
	)

	PasswordField = browser.CSS(
		`input[type="password"]`,
		`input[name="password"]`,
	)

	LoginButton = browser.CSS(
		`button[data-testid="LoginForm_Login_Button"]`,
	).Then(
		browser.Role("button", "Log in", "تسجيل الدخول"),
	)

	// ChallengeInput asks for the phone or email tied to the account.
	ChallengeInput = browser.CSS(
		`input[data-testid="ocfEnterTextTextInput"]`,
	)

	// SignedInControl only renders for authenticated sessions.
	SignedInControl = browser.CSS(
		`[data-testid="SideNav_NewTweet_Button"]`,
		`[data-testid="AppTabBar_Home_Link"]`,
	)
)

// RateLimitPhrases are the banners X shows when it refuses a login attempt.
var RateLimitPhrases = []string{
	"Please try again later",
	"try again later",
	"try later",
	"حاول مرة أخرى لاحقًا",
	"يرجى المحاولة لاحقًا",
}
