package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"<b>Mentions</b> chlorophyll", "Mentions chlorophyll"},
		{"Explains the result<script>alert(1)</script>", "Explains the result"},
		{"&lt;script&gt;alert(1)&lt;/script&gt; Explains the result", "Explains the result"},
		{"&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt; claim", "bold claim"},
		{"&lt;img src=x onerror=alert(1)&gt;Cites sources", "Cites sources"},
		{"  Keeps x < 5 & y > 2 readable  ", "Keeps x < 5 & y > 2 readable"},
		{`Quotes "Gustave Eiffel" and l'architecte`, `Quotes "Gustave Eiffel" and l'architecte`},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := sanitizeText(tc.input)
			require.Equal(t, tc.want, got)
			require.NotContains(t, got, "<script")
			require.NotContains(t, got, "<img")
		})
	}
}

func TestMaskEmailAddress(t *testing.T) {
	require.Equal(t, "a***e@example.com", maskEmailAddress("Alice@Example.com"))
	require.Equal(t, "a***@example.com", maskEmailAddress("al@example.com"))
	require.Equal(t, "***", maskEmailAddress("not-an-email"))
	require.Empty(t, maskEmailAddress("  "))
}
