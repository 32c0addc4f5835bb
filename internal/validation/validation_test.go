package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "SecurePass12", false},
		{"Exactly Min Length", "Abcdef1x", false},
		{"Exactly Max Length", "A" + strings.Repeat("b", 126) + "1", false},
		{"Too Short", "Small1!", true},
		{"Too Long", "A" + strings.Repeat("b", 127) + "1", true},
		{"No Upper", "securepass12", true},
		{"No Lower", "SECUREPASS12", true},
		{"No Digit", "SecurePass!!", true},
		{"Unicode Characters", "ÅngstromPass12", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	emailAt254 := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Exactly 254 Characters", emailAt254, false},
		{"Too Long", "x" + emailAt254, true},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
		{"Multiple At Symbols", "user@@example.com", true},
		{"Space In Local Part", "user @example.com", true},
		{"Trailing Dot In Domain", "user@example.com.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateDisplayName(""))
	assert.NoError(t, ValidateDisplayName("Sarah Chen"))
	assert.NoError(t, ValidateDisplayName(strings.Repeat("é", MaxDisplayNameLength)))
	assert.Error(t, ValidateDisplayName(strings.Repeat("a", MaxDisplayNameLength+1)))
	assert.Error(t, ValidateDisplayName("bad\x00name"))
}

func TestValidatePostInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		title   string
		url     string
		caption string
		wantErr bool
	}{
		{"Valid", "AI Startup Raises $100M", "https://techcrunch.com/ai", "", false},
		{"Scheme Omitted", "Show HN", "github.com/alexr/project", "nice", false},
		{"Protocol Relative", "CDN", "//cdn.example.com/x", "", false},
		{"Blank Title", "   ", "example.com", "", true},
		{"Blank URL", "Title", "  ", "", true},
		{"Long Title", strings.Repeat("t", MaxTitleLength+1), "example.com", "", true},
		{"Long URL", "Title", "example.com/" + strings.Repeat("p", MaxURLLength), "", true},
		{"Long Caption", "Title", "example.com", strings.Repeat("c", MaxCaptionLength+1), true},
		{"Bare Scheme", "Title", "https://", "", false},
		{"Free Text", "Title", "my site", "", false},
		{"Spaces", "Title", "foo bar", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePostInput(tt.title, tt.url, tt.caption)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
