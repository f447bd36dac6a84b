package templates

import (
	"strings"
	"testing"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unsubURL = "https://ecell.example.edu/newsletter/unsubscribe/tok123"

func TestRenderCampaign_ContentBecomesParagraphs(t *testing.T) {
	c := &models.Campaign{
		Title:   "March Digest",
		Subject: "E-Cell March Digest",
		Content: "First line\n\nSecond <line> & more\r\nThird",
	}

	r, err := RenderCampaign(c, unsubURL)
	require.NoError(t, err)

	assert.Equal(t, "E-Cell March Digest", r.Subject)
	assert.Equal(t, 3, strings.Count(r.HTML, "<p style=\"font-size:16px"), "blank lines are dropped")
	assert.Contains(t, r.HTML, "First line</p>")
	assert.Contains(t, r.HTML, "Second &lt;line&gt; &amp; more</p>")
	assert.Contains(t, r.HTML, `href="`+unsubURL+`"`)
	assert.Contains(t, r.Text, "Unsubscribe: "+unsubURL)
	assert.Contains(t, r.Text, "Second <line> & more")
}

func TestRenderCampaign_HTMLContentVerbatim(t *testing.T) {
	c := &models.Campaign{
		Title:       "Launch",
		Subject:     "Launch",
		Content:     "ignored in html",
		HTMLContent: `<div class="hero"><b>Big</b> news</div>`,
	}

	r, err := RenderCampaign(c, unsubURL)
	require.NoError(t, err)
	assert.Contains(t, r.HTML, `<div class="hero"><b>Big</b> news</div>`)
	assert.NotContains(t, r.HTML, "ignored in html")
	assert.Contains(t, r.Text, "ignored in html", "text part always comes from content")
}

func TestRenderCampaign_OptionalBlocks(t *testing.T) {
	c := &models.Campaign{Title: "T", Subject: "S", Content: "c"}
	r, err := RenderCampaign(c, unsubURL)
	require.NoError(t, err)
	assert.NotContains(t, r.HTML, "<img")
	assert.NotContains(t, r.HTML, "display:none")

	c.FeaturedImage = "https://cdn.example.edu/img.png"
	c.PreviewText = "Sneak peek"
	r, err = RenderCampaign(c, unsubURL)
	require.NoError(t, err)
	assert.Contains(t, r.HTML, `src="https://cdn.example.edu/img.png"`)
	assert.Contains(t, r.HTML, "Sneak peek")
}

func TestRenderCampaign_Deterministic(t *testing.T) {
	c := &models.Campaign{Title: "T", Subject: "S", Content: "a\nb"}
	a, err := RenderCampaign(c, unsubURL)
	require.NoError(t, err)
	b, err := RenderCampaign(c, unsubURL)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRenderWelcome(t *testing.T) {
	s := &models.Subscriber{Name: "Asha", Interests: []string{"startups", "events"}}
	r, err := RenderWelcome(s, unsubURL)
	require.NoError(t, err)

	assert.Equal(t, WelcomeSubject, r.Subject)
	assert.Contains(t, r.HTML, "Welcome, Asha!")
	assert.Contains(t, r.HTML, "<li>startups</li>")
	assert.Contains(t, r.HTML, unsubURL)
	assert.Contains(t, r.Text, "- events")
	assert.Contains(t, r.Text, unsubURL)
}

func TestRenderWelcome_NoNameNoInterests(t *testing.T) {
	r, err := RenderWelcome(&models.Subscriber{}, unsubURL)
	require.NoError(t, err)
	assert.Contains(t, r.HTML, "Welcome, there!")
	assert.NotContains(t, r.HTML, "<ul>")
	assert.NotContains(t, r.Text, "interested in")
}

func TestUnsubscribeURL(t *testing.T) {
	assert.Equal(t, unsubURL, UnsubscribeURL("https://ecell.example.edu/", "tok123"))
	assert.Equal(t, unsubURL, UnsubscribeURL("https://ecell.example.edu", "tok123"))
	assert.Equal(t, "https://ecell.example.edu/newsletter", NewsletterURL("https://ecell.example.edu/"))
}
