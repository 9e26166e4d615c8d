package notifier

import (
	"fmt"
	"html/template"
	"strings"

	"notifyme/internal/models"
)

// maxArticlesInEmail caps how many new entries a single email lists.
const maxArticlesInEmail = 15

// internalDetailKeys are result details that carry checker bookkeeping, not
// information a reader wants in an email.
var internalDetailKeys = map[string]struct{}{
	"event_id":      {},
	"feed_title":    {},
	"excerpt":       {},
	"hash":          {},
	"previous_hash": {},
}

var htmlBodyTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.5; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background: #f8f9fa; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
  .header h2 { margin: 0 0 10px 0; }
  .status { display: inline-block; padding: 4px 12px; border-radius: 4px; color: white; background: {{.StatusColor}}; font-weight: 500; font-size: 14px; }
  .meta { color: #666; font-size: 14px; margin-top: 10px; }
  .explanation { background: #f8f9fa; padding: 15px; border-radius: 8px; margin: 20px 0; border-left: 4px solid {{.StatusColor}}; }
  .article { background: #fff; border: 1px solid #e9ecef; border-radius: 8px; padding: 15px; margin-bottom: 12px; }
  .article-title { font-weight: 600; color: #333; text-decoration: none; font-size: 15px; }
  .article-meta { color: #666; font-size: 13px; margin-top: 6px; }
  .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #e9ecef; color: #999; font-size: 12px; }
</style>
</head>
<body>
  <div class="header">
    <h2>{{.MonitorName}}</h2>
    <span class="status">{{.StatusText}}</span>
    <div class="meta">Type: {{.MonitorType}} &bull; <a href="{{.MonitorURL}}">View Source</a></div>
  </div>
  <div class="explanation">{{.Explanation}}</div>
{{- if .Details}}
  <div class="details"><strong>Details:</strong><ul>
{{- range .Details}}
    <li><strong>{{.Key}}:</strong> {{.Value}}</li>
{{- end}}
  </ul></div>
{{- end}}
{{- if .Articles}}
  <div class="articles"><h3>New Articles ({{.ArticleCount}})</h3>
{{- range .Articles}}
    <div class="article">
      <a href="{{.Link}}" class="article-title">{{.Title}}</a>
      <div class="article-meta">{{.Source}}{{if .Published}} &bull; {{.Published}}{{end}}</div>
    </div>
{{- end}}
{{- if .MoreArticles}}
    <p style="color: #666;">...and {{.MoreArticles}} more articles</p>
{{- end}}
  </div>
{{- end}}
  <div class="footer">Sent by notifyme</div>
</body>
</html>
`))

type emailDetail struct {
	Key   string
	Value any
}

type emailData struct {
	MonitorName  string
	MonitorType  string
	MonitorURL   string
	StatusColor  string
	StatusText   string
	Explanation  string
	Details      []emailDetail
	Articles     []models.FeedItem
	ArticleCount int
	MoreArticles int
}

// formatHTMLBody renders the HTML email body for a check result.
func formatHTMLBody(monitor *models.Monitor, result *models.CheckResult) string {
	data := emailData{
		MonitorName: monitor.Name,
		MonitorType: string(monitor.Type),
		MonitorURL:  monitor.URL,
		StatusColor: "#dc3545",
		StatusText:  "Condition not met",
		Explanation: result.Explanation,
	}
	if result.ConditionMet {
		data.StatusColor = "#28a745"
		data.StatusText = "CONDITION MET"
	}

	for key, value := range result.Details {
		if _, internal := internalDetailKeys[key]; internal {
			continue
		}
		if value == nil || value == "" {
			continue
		}
		data.Details = append(data.Details, emailDetail{Key: key, Value: value})
	}

	data.ArticleCount = len(result.NewItems)
	shown := result.NewItems
	if len(shown) > maxArticlesInEmail {
		data.MoreArticles = len(shown) - maxArticlesInEmail
		shown = shown[:maxArticlesInEmail]
	}
	data.Articles = make([]models.FeedItem, len(shown))
	copy(data.Articles, shown)
	for i := range data.Articles {
		data.Articles[i].Title = trimSourceSuffix(data.Articles[i].Title, data.Articles[i].Source)
	}

	var buf strings.Builder
	if err := htmlBodyTemplate.Execute(&buf, data); err != nil {
		// Template data is fully under our control; fall back to plain text.
		return "<pre>" + template.HTMLEscapeString(formatTextBody(monitor, result)) + "</pre>"
	}
	return buf.String()
}

// formatTextBody renders the plain-text alternative body.
func formatTextBody(monitor *models.Monitor, result *models.CheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Monitor: %s\n", monitor.Name)
	fmt.Fprintf(&b, "Type: %s\n", monitor.Type)
	fmt.Fprintf(&b, "URL: %s\n\n", monitor.URL)
	fmt.Fprintf(&b, "%s\n", result.Explanation)

	for key, value := range result.Details {
		if _, internal := internalDetailKeys[key]; internal {
			continue
		}
		if value == nil || value == "" {
			continue
		}
		fmt.Fprintf(&b, "  %s: %v\n", key, value)
	}

	if len(result.NewItems) > 0 {
		fmt.Fprintf(&b, "\nNew articles (%d):\n", len(result.NewItems))
		for i, item := range result.NewItems {
			if i >= maxArticlesInEmail {
				fmt.Fprintf(&b, "  ...and %d more\n", len(result.NewItems)-maxArticlesInEmail)
				break
			}
			fmt.Fprintf(&b, "  - %s (%s)\n    %s\n", trimSourceSuffix(item.Title, item.Source), item.Source, item.Link)
		}
	}
	return b.String()
}

// trimSourceSuffix drops a Google-News style " - Source" suffix from a title
// when the suffix matches the entry's source.
func trimSourceSuffix(title, source string) string {
	if source == "" || !strings.HasSuffix(title, source) {
		return title
	}
	if idx := strings.LastIndex(title, " - "); idx >= 0 {
		return title[:idx]
	}
	return title
}
