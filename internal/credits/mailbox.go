package credits

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"notifyme/internal/config"
)

const (
	// maxEmailAge rejects login emails older than this; a stale magic link
	// is expired or belongs to an earlier login attempt.
	maxEmailAge = 2 * time.Minute

	// pollInterval is how often the inbox is re-checked while waiting.
	pollInterval = 3 * time.Second

	gmailTrashFolder = "[Gmail]/Trash"
)

var magicLinkRegex = regexp.MustCompile(`href="(https://(?:platform\.claude\.com|console\.anthropic\.com)/magic-link[^"]+)"`)

// Mailbox polls an IMAP inbox for Anthropic login emails and extracts the
// magic link.
type Mailbox struct {
	cfg    config.CreditsConfig
	logger zerolog.Logger
}

// NewMailbox creates a new Mailbox.
func NewMailbox(cfg config.CreditsConfig, logger zerolog.Logger) *Mailbox {
	return &Mailbox{cfg: cfg, logger: logger}
}

// WaitForMagicLink polls the inbox until a fresh login email arrives and
// returns the magic link URL plus the message sequence number for archival.
// It gives up after the configured wait window.
func (m *Mailbox) WaitForMagicLink(ctx context.Context) (string, uint32, error) {
	deadline := time.Now().Add(time.Duration(m.cfg.MaxWaitSecs) * time.Second)

	for time.Now().Before(deadline) {
		link, seqNum, err := m.findMagicLink()
		if err != nil {
			m.logger.Warn().Err(err).Msg("IMAP poll failed, retrying")
		} else if link != "" {
			m.logger.Info().Msg("Found magic link")
			return link, seqNum, nil
		}

		select {
		case <-ctx.Done():
			return "", 0, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return "", 0, fmt.Errorf("timed out waiting for magic link email after %ds", m.cfg.MaxWaitSecs)
}

// ArchiveEmail moves a used magic link email to the trash. Gmail exposes a
// dedicated trash folder; other providers get the delete-and-expunge fallback.
func (m *Mailbox) ArchiveEmail(seqNum uint32) error {
	c, err := m.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	if err := c.Copy(seqSet, gmailTrashFolder); err == nil {
		m.logger.Info().Msg("Moved magic link email to trash")
	}
	flagOp := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqSet, flagOp, []any{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("failed to mark email deleted: %w", err)
	}
	if err := c.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge: %w", err)
	}
	return nil
}

// findMagicLink runs a single inbox scan. An empty link with a nil error
// means no fresh login email yet.
func (m *Mailbox) findMagicLink() (string, uint32, error) {
	c, err := m.connect()
	if err != nil {
		return "", 0, err
	}
	defer c.Logout()

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().AddDate(0, 0, -1)
	criteria.Header.Add("From", "anthropic")

	seqNums, err := c.Search(criteria)
	if err != nil {
		return "", 0, fmt.Errorf("IMAP search failed: %w", err)
	}
	if len(seqNums) == 0 {
		return "", 0, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope}

	messages := make(chan *imap.Message, len(seqNums))
	fetchDone := make(chan error, 1)
	go func() {
		fetchDone <- c.Fetch(seqSet, items, messages)
	}()

	var link string
	var linkSeqNum uint32
	for msg := range messages {
		if msg.Envelope == nil || !isLoginEmail(msg.Envelope.Subject) {
			continue
		}
		if age := time.Since(msg.Envelope.Date); age > maxEmailAge {
			continue
		}

		bodyReader := msg.GetBody(section)
		if bodyReader == nil {
			continue
		}
		body, err := readMessageBody(bodyReader)
		if err != nil {
			m.logger.Debug().Err(err).Msg("Failed to parse login email body")
			continue
		}

		if match := magicLinkRegex.FindStringSubmatch(body); match != nil {
			link = match[1]
			linkSeqNum = msg.SeqNum
		}
	}
	if err := <-fetchDone; err != nil {
		return "", 0, fmt.Errorf("IMAP fetch failed: %w", err)
	}
	return link, linkSeqNum, nil
}

func (m *Mailbox) connect() (*client.Client, error) {
	c, err := client.DialTLS(m.cfg.IMAPHost+":993", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server %s: %w", m.cfg.IMAPHost, err)
	}
	if err := c.Login(m.cfg.IMAPUser, m.cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}
	if _, err := c.Select("INBOX", false); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}
	return c, nil
}

func isLoginEmail(subject string) bool {
	lowered := strings.ToLower(subject)
	return strings.Contains(lowered, "secure link") || strings.Contains(lowered, "log in")
}

// readMessageBody concatenates the text parts of an RFC 822 message, walking
// multipart bodies and decoding quoted-printable content.
func readMessageBody(r io.Reader) (string, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return "", err
	}

	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		var parts []string
		mr := multipart.NewReader(msg.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", err
			}
			partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			if partType != "text/html" && partType != "text/plain" {
				continue
			}
			content, err := io.ReadAll(decodeTransferEncoding(part, part.Header.Get("Content-Transfer-Encoding")))
			if err != nil {
				continue
			}
			parts = append(parts, string(content))
		}
		return strings.Join(parts, "\n"), nil
	}

	content, err := io.ReadAll(decodeTransferEncoding(msg.Body, msg.Header.Get("Content-Transfer-Encoding")))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func decodeTransferEncoding(r io.Reader, encoding string) io.Reader {
	if strings.EqualFold(strings.TrimSpace(encoding), "quoted-printable") {
		return quotedprintable.NewReader(r)
	}
	return r
}
