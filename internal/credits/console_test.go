package credits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBalance(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   float64
		wantOK bool
	}{
		{name: "labeled balance", text: "Credit Balance: $42.50\nUsage this month", want: 42.50, wantOK: true},
		{name: "amount then keyword", text: "You have $1,234.56 remaining", want: 1234.56, wantOK: true},
		{name: "remaining prefix", text: "remaining: 12.00", want: 12.00, wantOK: true},
		{name: "credits keyword", text: "credits: $3", want: 3, wantOK: true},
		{name: "no balance on page", text: "Welcome back! Settings / Members / Keys", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractBalance(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestMagicLinkRegex(t *testing.T) {
	body := `<html><body>
	<p>Click the secure link below to log in:</p>
	<a href="https://platform.claude.com/magic-link#token=abc123&amp;x=1">Log in</a>
	</body></html>`

	match := magicLinkRegex.FindStringSubmatch(body)
	require.NotNil(t, match)
	assert.Equal(t, "https://platform.claude.com/magic-link#token=abc123&amp;x=1", match[1])

	assert.Nil(t, magicLinkRegex.FindStringSubmatch(`<a href="https://evil.example.com/magic-link">x</a>`))
}

func TestIsLoginEmail(t *testing.T) {
	assert.True(t, isLoginEmail("Your secure link to Anthropic Console"))
	assert.True(t, isLoginEmail("Log in to your account"))
	assert.False(t, isLoginEmail("Your invoice for August"))
}
