package orchestrate

import (
	"strings"

	"github.com/tidwall/gjson"
)

// NoContent is the reply shown when an agent answered 200 but no known
// field carried text. It is a displayable outcome, not an error.
const NoContent = "[no content]"

// extractor pulls a candidate reply out of a parsed document.
type extractor struct {
	name    string
	extract func(doc gjson.Result) string
}

// pathExtractor reads a single gjson path; non-string values never match.
func pathExtractor(path string) extractor {
	return extractor{
		name: path,
		extract: func(doc gjson.Result) string {
			v := doc.Get(path)
			if v.Type != gjson.String {
				return ""
			}
			return v.Str
		},
	}
}

// replyShapes lists the known response shapes, most specific first.
var replyShapes = []extractor{
	pathExtractor("choices.0.message.content"),
	pathExtractor("choices.0.text"),
	pathExtractor("results.0.generated_text"),
	pathExtractor("results.0.response"),
	pathExtractor("results.0.output_text"),
	pathExtractor("results.0.output.0.text"),
	{
		name: "results.0.output.0.content[*].text",
		extract: func(doc gjson.Result) string {
			var text string
			doc.Get("results.0.output.0.content").ForEach(func(_, block gjson.Result) bool {
				if t := block.Get("text"); t.Type == gjson.String && strings.TrimSpace(t.Str) != "" {
					text = t.Str
					return false
				}
				return true
			})
			return text
		},
	},
	pathExtractor("predictions.0.values.0.0"),
	pathExtractor("reply"),
	pathExtractor("text"),
}

// Normalize extracts the reply text from an agent response body.
// Unknown shapes and invalid JSON yield NoContent.
func Normalize(body []byte) string {
	reply, _ := normalize(body)
	return reply
}

// normalize also reports which shape matched, "" when none did.
func normalize(body []byte) (string, string) {
	if !gjson.ValidBytes(body) {
		return NoContent, ""
	}
	doc := gjson.ParseBytes(body)
	for _, shape := range replyShapes {
		if s := shape.extract(doc); strings.TrimSpace(s) != "" {
			return s, shape.name
		}
	}
	return NoContent, ""
}
