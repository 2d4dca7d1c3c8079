package enrich

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mindmorass/spiegel/internal/clipboard"
)

// MaxContentRunes is how much text is sent to the service
const MaxContentRunes = 2000

// Categories is the taxonomy offered to the categorizer
var Categories = []string{
	"code_snippet", "technical_advice", "documentation", "url", "credentials",
	"data", "communication", "notes", "reference", "creative", "business",
	"academic", "error_log", "command", "image", "other",
}

const categorizeSystemPrompt = `You are a clipboard content categorizer. Your job is to categorize content into a primary category and suggest relevant tags.

IMPORTANT: Respond with ONLY a JSON object in this exact format:
{
  "category": "category_name",
  "tags": ["tag1", "tag2", "tag3"]
}

Use these primary categories (choose the best fit):
- code_snippet: Programming code, scripts, configuration files, JSON, XML, HTML, CSS, SQL queries
- technical_advice: Technical explanations, troubleshooting steps, how-to guides
- documentation: API docs, README files, technical specifications, user manuals
- url: Web links, file paths, network addresses
- credentials: Passwords, API keys, tokens, certificates
- data: CSV data, logs, structured data, database records
- communication: Emails, messages, social media posts, chat conversations
- notes: Personal notes, reminders, todo items, quick thoughts
- reference: Phone numbers, addresses, contact info, reference materials
- creative: Writing, stories, poems, creative content
- business: Meeting notes, project plans, business documents, proposals
- academic: Research, papers, citations, study materials
- error_log: Error messages, stack traces, debug output
- command: Terminal commands, CLI instructions, scripts to run
- image: Screenshots, photos, diagrams, charts, memes, artwork, UI mockups
- other: Content that doesn't fit the above categories

Suggest 2-4 specific tags. Tags are lowercase, single words or hyphenated
(e.g. "react", "error-handling", "screenshot", "ui-design").

Examples:
Input: "const handleClick = () => { console.log('clicked'); }"
Output: {"category": "code_snippet", "tags": ["javascript", "function", "event-handler"]}

Input: "https://github.com/user/repo"
Output: {"category": "url", "tags": ["github", "repository", "git"]}

Input: [Image of a terminal with error messages]
Output: {"category": "image", "tags": ["screenshot", "terminal", "error-message"]}`

const summarizeSystemPrompt = `You are a concise summarization assistant.
Provide a clear, bullet-point summary of the key points.
Do not include citations or extra commentary.`

// TruncateContent caps text at MaxContentRunes and marks the cut with "..."
func TruncateContent(s string) string {
	return Truncate(s, MaxContentRunes)
}

// Truncate keeps the first n characters of s and appends "..." when
// anything was cut
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// IsURL reports whether text is a single absolute http or https URL
func IsURL(text string) bool {
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func imageDataURL(img clipboard.Image) string {
	return "data:image/png;base64," + img.Data
}

func categorizeMessages(c clipboard.Capture) []ChatMessage {
	system := ChatMessage{Role: "system", Content: []ContentPart{textPart(categorizeSystemPrompt)}}

	switch c.Kind() {
	case clipboard.KindImage:
		img, _ := c.Image()
		return []ChatMessage{system, {
			Role: "user",
			Content: []ContentPart{
				textPart(fmt.Sprintf("Categorize this image content. Image dimensions: %dx%d. Analyze what you see in the image and provide appropriate category and tags.", img.Width, img.Height)),
				imagePart(imageDataURL(img)),
			},
		}}
	default:
		text, _ := c.Text()
		return []ChatMessage{system, {
			Role:    "user",
			Content: []ContentPart{textPart("Categorize this text content:\n\n" + TruncateContent(text))},
		}}
	}
}

func summarizeMessages(c clipboard.Capture) []ChatMessage {
	system := ChatMessage{Role: "system", Content: []ContentPart{textPart(summarizeSystemPrompt)}}

	switch c.Kind() {
	case clipboard.KindImage:
		img, _ := c.Image()
		return []ChatMessage{system, {
			Role: "user",
			Content: []ContentPart{
				textPart(fmt.Sprintf("Please provide a brief summary of the image content. Image dimensions: %dx%d. Analyze what you see in the image.", img.Width, img.Height)),
				imagePart(imageDataURL(img)),
			},
		}}
	default:
		text, _ := c.Text()
		return []ChatMessage{system, {
			Role: "user",
			Content: []ContentPart{textPart(
				"Please summarize the following content. If it came from a URL, provide a short overview of the page's main points.\n\n" +
					TruncateContent(text))},
		}}
	}
}
