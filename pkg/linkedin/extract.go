package linkedin

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"liscraper/pkg/models"
)

// Profile page selectors. LinkedIn reshuffles its DOM periodically; these
// are kept in one place so a layout change is a one-file fix.
const (
	selName      = "h1.text-heading-xlarge"
	selHeadline  = "div.text-body-medium.break-words"
	selLocation  = "span.text-body-small.inline.t-black--light.break-words"
	selExpItem   = `section[id*="experience"] ~ div li.artdeco-list__item, #experience ~ div li.artdeco-list__item`
	selEduItem   = `section[id*="education"] ~ div li.artdeco-list__item, #education ~ div li.artdeco-list__item`
	selEntryText = `span[aria-hidden="true"]`
)

// extractProfile reads the loaded profile page into a Profile. Missing
// sections yield empty fields rather than errors: a sparse profile is still
// a successful scrape.
func (s *Session) extractProfile(ctx context.Context) (*models.Profile, error) {
	page := s.page.Context(ctx)

	profile := &models.Profile{
		Name:     s.elementText(page, selName),
		Headline: s.elementText(page, selHeadline),
		Location: s.elementText(page, selLocation),
	}

	profile.JobHistory = s.extractJobs(page)
	profile.EducationHistory = s.extractEducation(page)

	if len(profile.JobHistory) > 0 {
		current := profile.JobHistory[0]
		if current.IsCurrent {
			profile.CurrentCompany = current.Company
			profile.CurrentTitle = current.Title
		}
	}

	return profile, nil
}

// extractJobs reads the experience section, newest first.
func (s *Session) extractJobs(page *rod.Page) []models.JobEntry {
	items, err := page.Elements(selExpItem)
	if err != nil || len(items) == 0 {
		return nil
	}

	var jobs []models.JobEntry
	for _, item := range items {
		lines := itemLines(item)
		if len(lines) == 0 {
			continue
		}

		entry := models.JobEntry{Title: lines[0]}
		if len(lines) > 1 {
			entry.Company = strings.SplitN(lines[1], " · ", 2)[0]
		}
		if len(lines) > 2 {
			entry.StartDate, entry.EndDate = splitDateRange(lines[2])
			entry.IsCurrent = entry.EndDate == ""
		}
		if len(lines) > 3 {
			entry.Location = lines[3]
		}
		jobs = append(jobs, entry)
	}
	return jobs
}

// extractEducation reads the education section.
func (s *Session) extractEducation(page *rod.Page) []models.EducationEntry {
	items, err := page.Elements(selEduItem)
	if err != nil || len(items) == 0 {
		return nil
	}

	var entries []models.EducationEntry
	for _, item := range items {
		lines := itemLines(item)
		if len(lines) == 0 {
			continue
		}

		entry := models.EducationEntry{Institution: lines[0]}
		if len(lines) > 1 {
			degree, field, ok := strings.Cut(lines[1], ", ")
			entry.Degree = degree
			if ok {
				entry.Field = field
			}
		}
		if len(lines) > 2 {
			start, end := splitDateRange(lines[2])
			entry.StartYear = parseYear(start)
			entry.EndYear = parseYear(end)
		}
		entries = append(entries, entry)
	}
	return entries
}

// elementText returns the first matching element's text, empty when absent.
// Lookups race a short timeout so a missing section does not stall the
// scrape.
func (s *Session) elementText(page *rod.Page, selector string) string {
	el, err := page.Timeout(3 * time.Second).Element(selector)
	if err != nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// itemLines collects the visible text lines of one list item, deduplicated
// in order. LinkedIn renders each value twice (once for screen readers).
func itemLines(item *rod.Element) []string {
	spans, err := item.Elements(selEntryText)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var lines []string
	for _, span := range spans {
		text, err := span.Text()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		lines = append(lines, text)
	}
	return lines
}

// splitDateRange splits "Jan 2020 - Present · 3 yrs" into start and end.
// An end of "Present" maps to empty, marking the entry current.
func splitDateRange(raw string) (start, end string) {
	raw = strings.SplitN(raw, " · ", 2)[0]
	parts := strings.SplitN(raw, " - ", 2)
	start = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		end = strings.TrimSpace(parts[1])
	}
	if strings.EqualFold(end, "present") {
		end = ""
	}
	return start, end
}

// parseYear pulls the trailing year out of a date string, 0 when absent.
func parseYear(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	year, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0
	}
	return year
}
