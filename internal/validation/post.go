package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength   = 300
	MaxURLLength     = 2048
	MaxCaptionLength = 2000
)

// ValidatePostInput checks a submission at the API boundary. Beyond being
// present and bounded in length the link is taken as typed; the feed only
// adds a missing scheme.
func ValidatePostInput(title, link, caption string) error {
	title = strings.TrimSpace(title)
	link = strings.TrimSpace(link)

	if title == "" {
		return fmt.Errorf("title is required")
	}
	if link == "" {
		return fmt.Errorf("url is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title must not exceed %d characters", MaxTitleLength)
	}
	if len(link) > MaxURLLength {
		return fmt.Errorf("url must not exceed %d characters", MaxURLLength)
	}
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return fmt.Errorf("caption must not exceed %d characters", MaxCaptionLength)
	}

	return nil
}
