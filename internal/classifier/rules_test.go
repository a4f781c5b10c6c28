package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

func TestRuleSetPrecedence(t *testing.T) {
	rules := NewRuleSet(config.ClassifierConfig{
		PhishingKeywords:  config.DefaultPhishingKeywords,
		SpamKeywords:      config.DefaultSpamKeywords,
		SuspiciousDomains: config.DefaultSuspiciousDomains,
	})

	tests := []struct {
		name    string
		email   types.Email
		want    types.Label
		rule    int
		keyword string
	}{
		{
			name:    "phishing keyword beats suspicious domain",
			email:   types.Email{Subject: "Urgent: verify your account", From: "noreply@free-mail.com", Body: "click here"},
			want:    types.LabelPhishing,
			rule:    0,
			keyword: "urgent",
		},
		{
			name:    "phishing keyword beats spam keyword",
			email:   types.Email{Subject: "Free prize", Body: "Security alert on your account"},
			want:    types.LabelPhishing,
			rule:    0,
			keyword: "security alert",
		},
		{
			name:    "spam keyword in body",
			email:   types.Email{Subject: "Hello", Body: "A LOTTERY awaits"},
			want:    types.LabelSpam,
			rule:    1,
			keyword: "lottery",
		},
		{
			name:    "suspicious sender",
			email:   types.Email{Subject: "Hi", From: "Jo <jo@tempbox.io>", Body: "lunch?"},
			want:    types.LabelSpam,
			rule:    2,
			keyword: "temp",
		},
		{
			name:  "display name is not the sender address",
			email: types.Email{Subject: "Hi", From: "Mail Team <team@example.org>", Body: "lunch?"},
			want:  types.LabelNormal,
			rule:  -1,
		},
		{
			name:  "nothing matches",
			email: types.Email{Subject: "Minutes", From: "bob@example.org", Body: "attached"},
			want:  types.LabelNormal,
			rule:  -1,
		},
		{
			name:  "empty message",
			email: types.Email{},
			want:  types.LabelNormal,
			rule:  -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := rules.Match(&tt.email)
			assert.Equal(t, tt.want, m.Label)
			assert.Equal(t, tt.rule, m.Rule)
			assert.Equal(t, tt.keyword, m.Keyword)
		})
	}
}

func TestRuleSetDeclaredOrder(t *testing.T) {
	rules := RuleSet{
		{Label: types.LabelSpam, Field: FieldContent, Keywords: []string{"offer"}},
		{Label: types.LabelPhishing, Field: FieldContent, Keywords: []string{"offer", "verify"}},
	}

	m := rules.Match(&types.Email{Subject: "verify this offer"})
	assert.Equal(t, types.LabelSpam, m.Label)
	assert.Equal(t, 0, m.Rule)
}

func TestNewRuleSetNormalizesKeywords(t *testing.T) {
	rules := NewRuleSet(config.ClassifierConfig{
		PhishingKeywords: []string{"  Reset PIN ", ""},
	})

	assert.Equal(t, []string{"reset pin"}, rules[0].Keywords)
	assert.Empty(t, rules[1].Keywords)
	assert.Equal(t, types.LabelPhishing, rules.Match(&types.Email{Body: "please RESET pin now"}).Label)
}
