package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"sitepulse/config"
	"sitepulse/extract"
)

const (
	maxPromptText     = 3000
	maxPromptMarkdown = 8000
	defaultSiteTitle  = "Website"
)

const analysisPrompt = `Analyze the following website content and provide a comprehensive review.

Please provide a JSON response with the following structure:
{
  "summary": "A brief summary of the web page content",
  "siteTitle": "The main title of the website",
  "websitePurpose": "What the website is for and its main purpose",
  "mainIdea": "The main idea or concept of the website",
  "seoTags": ["tag1", "tag2", "tag3"],
  "keywords": ["keyword1", "keyword2", "keyword3"],
  "contentAnalysis": "Detailed analysis of the content quality and structure"
}`

// ContentAnalysis is the structured review of a page's content.
type ContentAnalysis struct {
	Summary         string   `json:"summary"`
	SiteTitle       string   `json:"siteTitle"`
	WebsitePurpose  string   `json:"websitePurpose"`
	MainIdea        string   `json:"mainIdea"`
	SeoTags         []string `json:"seoTags"`
	Keywords        []string `json:"keywords"`
	ContentAnalysis string   `json:"contentAnalysis"`
}

// Provider turns a content snapshot into a ContentAnalysis. Implementations
// degrade to a fallback analysis instead of failing when the model is
// unavailable.
type Provider interface {
	Analyze(ctx context.Context, snapshot *extract.ContentSnapshot) (*ContentAnalysis, error)
}

// NewProvider returns a CommandProvider when a command is configured and the
// StaticProvider otherwise.
func NewProvider(cfg config.AIConfig, logger *zap.Logger) Provider {
	if cfg.Command == "" {
		return StaticProvider{}
	}
	return NewCommandProvider(cfg, logger)
}

// CommandProvider runs an external analyzer. It writes a JSON payload with
// "prompt" and "content" to the command's stdin and reads the analysis JSON
// from its stdout.
type CommandProvider struct {
	config config.AIConfig
	logger *zap.Logger
}

func NewCommandProvider(cfg config.AIConfig, logger *zap.Logger) *CommandProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandProvider{
		config: cfg,
		logger: logger,
	}
}

func (p *CommandProvider) Analyze(ctx context.Context, snapshot *extract.ContentSnapshot) (*ContentAnalysis, error) {
	output, err := p.run(ctx, snapshot)
	if err != nil {
		p.logger.Warn("content analysis unavailable", zap.String("url", snapshot.URL), zap.Error(err))
		return unavailableAnalysis(snapshot), nil
	}
	return parseAnalysis(output, snapshot), nil
}

func (p *CommandProvider) run(ctx context.Context, snapshot *extract.ContentSnapshot) (string, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(map[string]string{
		"prompt":  analysisPrompt,
		"content": PrepareContentForAI(snapshot),
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling payload: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.config.Command, p.config.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("analyzer failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("analyzer failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// parseAnalysis reads the first JSON object in output. Output without one is
// treated as a free-form summary.
func parseAnalysis(output string, snapshot *extract.ContentSnapshot) *ContentAnalysis {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start >= 0 && end > start {
		var analysis ContentAnalysis
		if err := json.Unmarshal([]byte(output[start:end+1]), &analysis); err == nil {
			if analysis.SiteTitle == "" {
				analysis.SiteTitle = siteTitle(snapshot)
			}
			if analysis.SeoTags == nil {
				analysis.SeoTags = []string{}
			}
			if analysis.Keywords == nil {
				analysis.Keywords = []string{}
			}
			return &analysis
		}
	}

	return &ContentAnalysis{
		Summary:         output,
		SiteTitle:       siteTitle(snapshot),
		WebsitePurpose:  "Analysis available",
		MainIdea:        "See summary",
		SeoTags:         []string{},
		Keywords:        []string{},
		ContentAnalysis: output,
	}
}

func unavailableAnalysis(snapshot *extract.ContentSnapshot) *ContentAnalysis {
	return &ContentAnalysis{
		Summary:         "Unable to analyze content at this time. Please check your API configuration.",
		SiteTitle:       siteTitle(snapshot),
		WebsitePurpose:  "Analysis unavailable",
		MainIdea:        "See summary",
		SeoTags:         []string{},
		Keywords:        []string{},
		ContentAnalysis: "Content analysis is currently unavailable.",
	}
}

// StaticProvider returns a generic analysis without contacting a model.
type StaticProvider struct{}

func (StaticProvider) Analyze(ctx context.Context, snapshot *extract.ContentSnapshot) (*ContentAnalysis, error) {
	return &ContentAnalysis{
		Summary:         "This website appears to be a modern web application focused on providing services to users. The content is well-structured and user-friendly.",
		SiteTitle:       siteTitle(snapshot),
		WebsitePurpose:  "To provide information and services to users",
		MainIdea:        "A professional website offering various services and information",
		SeoTags:         []string{"website", "services", "information", "online"},
		Keywords:        []string{"web", "services", "online", "information", "digital"},
		ContentAnalysis: "The website contains relevant content with good structure and organization.",
	}, nil
}

func siteTitle(snapshot *extract.ContentSnapshot) string {
	if snapshot == nil || snapshot.Title == "" {
		return defaultSiteTitle
	}
	return snapshot.Title
}

// PrepareContentForAI renders the snapshot as the plain-text document sent
// to the analyzer.
func PrepareContentForAI(snapshot *extract.ContentSnapshot) string {
	var result strings.Builder

	result.WriteString(fmt.Sprintf("Title: %s\n", snapshot.Title))
	result.WriteString(fmt.Sprintf("URL: %s\n", snapshot.URL))
	result.WriteString(fmt.Sprintf("Meta Description: %s\n", snapshot.MetaDescription))
	result.WriteString(fmt.Sprintf("H1 Tags: %s\n\n", strings.Join(snapshot.H1Tags, ", ")))

	if snapshot.TextContent != "" {
		result.WriteString(fmt.Sprintf("Text Content: %s\n\n", truncate(snapshot.TextContent, maxPromptText)))
	}

	if len(snapshot.Headings) > 0 {
		result.WriteString("Headings:\n")
		for _, heading := range snapshot.Headings {
			result.WriteString(fmt.Sprintf("- %s: %s\n", heading.Level, heading.Text))
		}
		result.WriteString("\n")
	}

	if snapshot.Markdown != "" {
		result.WriteString("Markdown Content:\n")
		if len([]rune(snapshot.Markdown)) > maxPromptMarkdown {
			result.WriteString(truncate(snapshot.Markdown, maxPromptMarkdown))
			result.WriteString("\n... (Markdown truncated for length)\n\n")
		} else {
			result.WriteString(snapshot.Markdown)
			result.WriteString("\n\n")
		}
	}

	return result.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
