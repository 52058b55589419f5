package gemini

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// --- Extraction+translation prompt ---

const extractPromptTemplate = `1. Extract ALL %[1]s text from this image exactly as written.
2. Translate each text element to %[2]s.

Return JSON:
{
    "extracted_text": "full original %[1]s text here...",
    "translations": [
        {"english": "...", "hebrew": "..."},
        ...
    ]
}

If there is no text in the image, return:
{"extracted_text": "", "translations": []}`

// --- Image editing prompt ---

const editPromptTemplate = `EDIT THIS IMAGE - DO NOT REGENERATE IT.

This is a text replacement task. Take the uploaded image and replace
the %[1]s text with %[2]s translations. Everything else must remain
EXACTLY as it is in the original:

- Keep the EXACT same illustrations and characters
- Keep the EXACT same layout and positioning
- Keep the EXACT same colors and backgrounds
- Keep the EXACT same decorative elements
- Do NOT redraw or reimagine any part of the image
- Do NOT change anything except the text

HEBREW TEXT POSITIONING (RTL RULES):
- Hebrew reads RIGHT-TO-LEFT
- Titles: keep centered if originally centered
- Paragraphs: flip alignment (left-aligned English becomes right-aligned Hebrew)
- Lists and bullet points: bullets move to the RIGHT side of the text
- Text boxes: text starts from the RIGHT edge
- Numbers and measurements (1/2 cup, 350F): keep as-is, they read correctly in RTL
- Keep text in the SAME position and area as the original

The ONLY change should be: %[1]s text replaced by %[2]s text with proper RTL alignment.

Text replacements to make:
%[3]s`

// --- Verification prompt ---

const verifyPromptTemplate = `Compare the original %[1]s text of a book page with the %[2]s
translation that was composited into the page.

Original text:
%[3]s

Translations applied:
%[4]s

Check for these issues:
1. MISSING TRANSLATION: is any source text element left untranslated?
2. MEANING DRIFT: does any translation change the meaning of the original?
3. UNREADABLE TEXT: is any translation garbled or incomplete?

Respond with JSON:
{
    "pass": true/false,
    "issues": ["list of issues found, or empty if pass"],
    "confidence": 0.0-1.0
}

Be strict - flag anything that looks wrong. False positives are better
than missed issues.`

func (c *Client) extractPrompt() string {
	return fmt.Sprintf(extractPromptTemplate, c.languageName(c.source), c.languageName(c.target))
}

func (c *Client) editPrompt(translations []Translation) string {
	var b strings.Builder
	for _, t := range translations {
		fmt.Fprintf(&b, "- %q -> %q\n", t.English, t.Hebrew)
	}
	return fmt.Sprintf(editPromptTemplate, c.languageName(c.source), c.languageName(c.target), b.String())
}

func (c *Client) verifyPrompt(sourceText string, translations []Translation) string {
	var b strings.Builder
	for _, t := range translations {
		fmt.Fprintf(&b, "- %q -> %q\n", t.English, t.Hebrew)
	}
	return fmt.Sprintf(verifyPromptTemplate,
		c.languageName(c.source), c.languageName(c.target), sourceText, b.String())
}

func (c *Client) languageName(tag language.Tag) string {
	return display.English.Tags().Name(tag)
}
