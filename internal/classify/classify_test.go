package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Category
	}{
		{"WiFi not working", Troubleshooting},
		{"How to setup router", Setup},
		{"What does red LED mean?", QuickFacts},
		{"Router problems", Progressive}, // single ambiguous hit, no strict winner across lists
		{"", Progressive},
		{"the quick brown fox", Progressive},
		{"device won't connect, red light blinking", Troubleshooting},
		{"first time install and configure", Setup},
		{"define the status indicator color", QuickFacts},
		{"HOW TO INSTALL", Setup}, // case-insensitive
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestClassify_TieResolvesToProgressive(t *testing.T) {
	// One quick-fact pattern ("led") and one troubleshooting pattern
	// ("error"): neither strictly exceeds the other.
	assert.Equal(t, Progressive, Classify("led error"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("quick_facts"))
	assert.True(t, Valid("progressive"))
	assert.False(t, Valid("detailed"))
	assert.False(t, Valid(""))
}
