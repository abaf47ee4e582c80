package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/util"
)

// ErrParseFailed is returned when an oracle answer is not a claim list.
var ErrParseFailed = errors.New("failed to parse claimed signals")

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ParseClaims decodes an oracle answer into claimed signals. The answer may
// be a bare JSON array, an object with a "signals" array, or either of those
// inside a markdown code fence.
func ParseClaims(text string) ([]models.ClaimedSignal, error) {
	content := strings.TrimSpace(text)
	if claims, err := decodeClaims(content); err == nil {
		return claims, nil
	}
	if m := jsonBlockRegex.FindStringSubmatch(content); len(m) >= 2 {
		if claims, err := decodeClaims(strings.TrimSpace(m[1])); err == nil {
			return claims, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrParseFailed, util.Truncate(content, 200, false))
}

func decodeClaims(content string) ([]models.ClaimedSignal, error) {
	if strings.HasPrefix(content, "{") {
		var wrapped struct {
			Signals *[]models.ClaimedSignal `json:"signals"`
		}
		if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Signals == nil {
			return nil, errors.New(`object has no "signals" array`)
		}
		return *wrapped.Signals, nil
	}
	var claims []models.ClaimedSignal
	if err := json.Unmarshal([]byte(content), &claims); err != nil {
		return nil, err
	}
	return claims, nil
}
