package gemini

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	openFence  = regexp.MustCompile("^```[a-zA-Z]*\n?")
	closeFence = regexp.MustCompile("\n?```$")
)

// stripFences removes a surrounding markdown code block, which the model
// emits despite being asked for bare JSON.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = openFence.ReplaceAllString(text, "")
		text = closeFence.ReplaceAllString(text, "")
	}
	return text
}

// parseExtraction parses the JSON body of an extract+translate response.
func parseExtraction(text string) (*Extraction, error) {
	var ext Extraction
	if err := json.Unmarshal([]byte(stripFences(text)), &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &ext, nil
}

// parseVerdict parses the JSON body of a verification response.
func parseVerdict(text string) (Verdict, error) {
	var v Verdict
	if err := json.Unmarshal([]byte(stripFences(text)), &v); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return v, nil
}
