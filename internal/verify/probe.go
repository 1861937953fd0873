package verify

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Careers-page vocabulary and the weight each hit contributes.
var keywordWeights = map[string]float64{
	"careers":        0.12,
	"jobs":           0.10,
	"openings":       0.10,
	"open positions": 0.12,
	"apply":          0.08,
	"hiring":         0.08,
	"join our team":  0.10,
	"vacancies":      0.08,
}

// Hosts of hosted applicant-tracking systems. A link to one is a strong
// signal even when the page copy is sparse.
var atsHosts = []string{
	"greenhouse.io",
	"lever.co",
	"workday.com",
	"ashbyhq.com",
	"bamboohr.com",
}

// scorePage rates how strongly a rendered page reads as a careers page for
// the named company, in [0, 0.99].
func scorePage(body []byte, companyName string) (float64, string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, "unparseable html"
	}
	doc.Find("script, style, noscript").Remove()

	text := strings.ToLower(strings.Join(strings.Fields(doc.Text()), " "))
	title := strings.ToLower(doc.Find("title").Text())

	score := 0.0
	var signals []string

	for keyword, weight := range keywordWeights {
		if strings.Contains(text, keyword) {
			score += weight
			signals = append(signals, keyword)
		}
	}

	if strings.Contains(title, "career") || strings.Contains(title, "job") {
		score += 0.25
		signals = append(signals, "title")
	}

	headings := strings.ToLower(doc.Find("h1, h2").Text())
	if strings.Contains(headings, "career") || strings.Contains(headings, "join") ||
		strings.Contains(headings, "open position") {
		score += 0.15
		signals = append(signals, "heading")
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.ToLower(href)
		for _, host := range atsHosts {
			if strings.Contains(href, host) {
				score += 0.2
				signals = append(signals, "ats-link")
				return false
			}
		}
		return true
	})

	if name := strings.ToLower(strings.TrimSpace(companyName)); name != "" &&
		strings.Contains(text, name) {
		score += 0.1
		signals = append(signals, "company-name")
	}

	if score > 0.99 {
		score = 0.99
	}
	if len(signals) == 0 {
		return score, "no careers signals found"
	}
	return score, fmt.Sprintf("signals: %s", strings.Join(signals, ", "))
}

// looksLikeAppShell reports whether a body is probably an unrendered
// single-page app: scripts present but almost no visible text.
func looksLikeAppShell(body []byte) bool {
	if !bytes.Contains(body, []byte("<script")) {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	doc.Find("script, style, noscript").Remove()
	visible := strings.Join(strings.Fields(doc.Text()), " ")
	return len(visible) < 120
}

// slugify reduces a company name to a bare domain label.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// guessedURLs are the conventional careers locations tried before falling
// back to web search.
func guessedURLs(companyName string) []string {
	slug := slugify(companyName)
	if slug == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("https://www.%s.com/careers", slug),
		fmt.Sprintf("https://%s.com/careers", slug),
		fmt.Sprintf("https://www.%s.com/jobs", slug),
		fmt.Sprintf("https://boards.greenhouse.io/%s", slug),
		fmt.Sprintf("https://jobs.lever.co/%s", slug),
	}
}
