// Package fetch - platform.go recognises hosted applicant-tracking boards and
// the selectors that wrap their job lists.
package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known hosted job board.
type Platform string

const (
	// PlatformGreenhouse is the Greenhouse ATS platform
	PlatformGreenhouse Platform = "greenhouse"
	// PlatformLever is the Lever ATS platform
	PlatformLever Platform = "lever"
	// PlatformWorkday is the Workday ATS platform
	PlatformWorkday Platform = "workday"
	// PlatformAshby is the Ashby ATS platform
	PlatformAshby Platform = "ashby"
	// PlatformUnknown is a company-hosted or unrecognized page
	PlatformUnknown Platform = "unknown"
)

var platformHosts = []struct {
	suffix   string
	platform Platform
}{
	{"greenhouse.io", PlatformGreenhouse},
	{"lever.co", PlatformLever},
	{"myworkdayjobs.com", PlatformWorkday},
	{"workday.com", PlatformWorkday},
	{"ashbyhq.com", PlatformAshby},
}

// DetectPlatform identifies the job board platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Hostname())
	for _, p := range platformHosts {
		if host == p.suffix || strings.HasSuffix(host, "."+p.suffix) {
			return p.platform
		}
	}
	return PlatformUnknown
}

// ListingSelectors returns selectors for the job list on a platform's board
// page, falling back to CareersPageSelectors for company-hosted pages.
func ListingSelectors(platform Platform) []string {
	switch platform {
	case PlatformGreenhouse:
		return []string{
			".job-posts",
			"#main",
			".opening",
			"section.level-0",
		}
	case PlatformLever:
		return []string{
			".postings-wrapper",
			".postings-group",
			".posting",
		}
	case PlatformWorkday:
		return []string{
			"[data-automation-id='jobResults']",
			"[data-automation-id='jobPostings']",
			"section",
		}
	case PlatformAshby:
		return []string{
			".ashby-job-posting-brief-list",
			"#root",
		}
	default:
		return CareersPageSelectors()
	}
}
