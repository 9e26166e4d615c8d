package credits

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"notifyme/internal/config"
)

// loginStepTimeout bounds each individual browser interaction during login.
const loginStepTimeout = 30 * time.Second

// balancePatterns are tried in order against the billing page text. The first
// capture group is the dollar amount.
var balancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Credit Balance[:\s]*\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)\$([\d,]+\.?\d*)\s*(?:remaining|credit|balance)`),
	regexp.MustCompile(`(?i)remaining[:\s]*\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)balance[:\s]*\$?([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)credits?[:\s]*\$?([\d,]+\.?\d*)`),
}

// ConsoleBalanceFetcher retrieves the Anthropic Console credit balance. The
// console has no API token flow for this, so it logs in with a magic link:
// submit the account email on the login page, poll the inbox over IMAP for the
// login email, follow the link, then scrape the billing page.
type ConsoleBalanceFetcher struct {
	cfg     config.CreditsConfig
	mailbox *Mailbox
	logger  zerolog.Logger
}

// NewConsoleBalanceFetcher creates a new ConsoleBalanceFetcher.
func NewConsoleBalanceFetcher(cfg config.CreditsConfig, logger zerolog.Logger) *ConsoleBalanceFetcher {
	componentLogger := logger.With().Str("component", "ConsoleBalanceFetcher").Logger()
	return &ConsoleBalanceFetcher{
		cfg:     cfg,
		mailbox: NewMailbox(cfg, componentLogger),
		logger:  componentLogger,
	}
}

// FetchBalance logs into the console and returns the current credit balance
// in dollars.
func (cf *ConsoleBalanceFetcher) FetchBalance(ctx context.Context) (float64, error) {
	if cf.cfg.ConsoleEmail == "" || cf.cfg.IMAPUser == "" || cf.cfg.IMAPPassword == "" {
		return 0, fmt.Errorf("credits check requires console_email, IMAP_USER and IMAP_PASSWORD")
	}

	browser, cleanup, err := cf.launchBrowser()
	if err != nil {
		return 0, err
	}
	defer cleanup()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return 0, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := cf.requestMagicLink(page); err != nil {
		return 0, err
	}

	cf.logger.Info().Msg("Waiting for magic link email")
	magicLink, emailUID, err := cf.mailbox.WaitForMagicLink(ctx)
	if err != nil {
		return 0, err
	}

	if err := navigate(page, magicLink); err != nil {
		return 0, fmt.Errorf("failed to open magic link: %w", err)
	}
	// The session cookie takes a moment to land after the redirect chain.
	time.Sleep(5 * time.Second)

	if cf.cfg.ArchiveEmail && emailUID != 0 {
		if err := cf.mailbox.ArchiveEmail(emailUID); err != nil {
			cf.logger.Warn().Err(err).Msg("Failed to archive magic link email")
		}
	}

	cf.logger.Info().Msg("Opening billing page")
	if err := navigate(page, cf.cfg.BillingURL); err != nil {
		return 0, fmt.Errorf("failed to open billing page: %w", err)
	}
	time.Sleep(3 * time.Second)

	info, err := page.Info()
	if err == nil && strings.Contains(info.URL, "login") {
		return 0, fmt.Errorf("magic link expired or already used")
	}

	return cf.extractBalance(page)
}

// requestMagicLink submits the console email on the login page so a login
// email is sent.
func (cf *ConsoleBalanceFetcher) requestMagicLink(page *rod.Page) error {
	cf.logger.Info().Str("url", cf.cfg.LoginURL).Msg("Opening console login page")
	if err := navigate(page, cf.cfg.LoginURL); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	time.Sleep(2 * time.Second)

	emailInput, err := page.Timeout(loginStepTimeout).Element(`input[type="email"], input[name="email"]`)
	if err != nil {
		return fmt.Errorf("login page email input not found: %w", err)
	}
	if err := emailInput.Input(cf.cfg.ConsoleEmail); err != nil {
		return fmt.Errorf("failed to enter console email: %w", err)
	}

	continueBtn, err := page.Timeout(loginStepTimeout).ElementR("button", "Continue with email")
	if err != nil {
		return fmt.Errorf("'Continue with email' button not found: %w", err)
	}
	if err := continueBtn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click 'Continue with email': %w", err)
	}
	time.Sleep(2 * time.Second)

	// Some accounts see an extra confirmation step.
	if linkBtn, err := page.Timeout(3*time.Second).ElementR("button", "Email me a link|Send link"); err == nil {
		if err := linkBtn.Click(proto.InputMouseButtonLeft, 1); err == nil {
			cf.logger.Debug().Msg("Clicked 'Email me a link'")
			time.Sleep(2 * time.Second)
		}
	}
	return nil
}

// extractBalance scrapes the dollar amount from the billing page text.
func (cf *ConsoleBalanceFetcher) extractBalance(page *rod.Page) (float64, error) {
	body, err := page.Timeout(loginStepTimeout).Element("body")
	if err != nil {
		return 0, fmt.Errorf("billing page body not found: %w", err)
	}
	pageText, err := body.Text()
	if err != nil {
		return 0, fmt.Errorf("failed to read billing page text: %w", err)
	}

	balance, ok := ExtractBalance(pageText)
	if !ok {
		return 0, fmt.Errorf("no credit balance pattern found on billing page")
	}
	cf.logger.Info().Float64("balance", balance).Msg("Found credit balance")
	return balance, nil
}

// ExtractBalance finds a credit balance amount in page text.
func ExtractBalance(pageText string) (float64, bool) {
	for _, pattern := range balancePatterns {
		match := pattern.FindStringSubmatch(pageText)
		if match == nil {
			continue
		}
		raw := strings.ReplaceAll(match[1], ",", "")
		balance, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return balance, true
	}
	return 0, false
}

// launchBrowser starts a dedicated Chromium instance for the login session.
// The login flow holds session cookies, so the instance is never shared with
// the page fetcher and is torn down after every check.
func (cf *ConsoleBalanceFetcher) launchBrowser() (*rod.Browser, func(), error) {
	l := launcher.New().
		Headless(!cf.cfg.Headed).
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	cleanup := func() {
		if err := browser.Close(); err != nil {
			cf.logger.Warn().Err(err).Msg("Failed to close browser")
		}
	}
	return browser, cleanup, nil
}

func navigate(page *rod.Page, url string) error {
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}
