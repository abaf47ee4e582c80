package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoProfile is returned when a profile cannot drive a hunt.
	ErrNoProfile = errors.New("business profile needs at least one product and one target group")
	// ErrInvalidStatus is returned for unknown signal lifecycle values.
	ErrInvalidStatus = errors.New("invalid signal status")
	// ErrInvalidFeedback is returned for unknown relevance feedback values.
	ErrInvalidFeedback = errors.New("invalid signal feedback")
)

// BusinessProfile describes the seller a hunt is run for.
type BusinessProfile struct {
	Name         string   `json:"name" yaml:"name"`
	Industry     string   `json:"industry" yaml:"industry"`
	Products     []string `json:"products" yaml:"products"`
	TargetGroups []string `json:"targetGroups" yaml:"target_groups"`
	Geography    []string `json:"geography" yaml:"geography"`
	Website      string   `json:"website" yaml:"website"`
}

// Validate reports ErrNoProfile when products or target groups are missing.
func (p BusinessProfile) Validate() error {
	if len(nonEmpty(p.Products)) == 0 || len(nonEmpty(p.TargetGroups)) == 0 {
		return ErrNoProfile
	}
	return nil
}

// TriggerStatus is the approval state of a trigger.
type TriggerStatus string

const (
	TriggerApproved TriggerStatus = "Approved"
	TriggerRejected TriggerStatus = "Rejected"
	TriggerPending  TriggerStatus = "Pending"
)

// SearchMode selects where a trigger's events are searched for.
type SearchMode string

const (
	SearchModeUnset SearchMode = ""
	SearchModeWeb   SearchMode = "web"
	SearchModeSites SearchMode = "sites"
	SearchModeBoth  SearchMode = "both"
)

// SiteList is a list of site domains. It decodes from either a single string
// or an array of strings so older trigger records keep working.
type SiteList []string

func (s *SiteList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*s = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = compactSites([]string{single})
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("limitToSite: expected string or array of strings: %w", err)
	}
	*s = compactSites(many)
	return nil
}

func (s *SiteList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = compactSites([]string{node.Value})
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return fmt.Errorf("limit_to_site: %w", err)
		}
		*s = compactSites(many)
		return nil
	default:
		return fmt.Errorf("limit_to_site: expected string or list, got yaml kind %d", node.Kind)
	}
}

func compactSites(in []string) SiteList {
	out := make(SiteList, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SalesTrigger is a user-approved rule describing which events matter.
type SalesTrigger struct {
	ID          string        `json:"id" yaml:"id"`
	Product     string        `json:"product" yaml:"product"`
	Event       string        `json:"event" yaml:"event"`
	Source      string        `json:"source" yaml:"source"`
	Logic       string        `json:"logic" yaml:"logic"`
	LimitToSite SiteList      `json:"limitToSite,omitempty" yaml:"limit_to_site,omitempty"`
	SearchMode  SearchMode    `json:"searchMode,omitempty" yaml:"search_mode,omitempty"`
	Status      TriggerStatus `json:"status" yaml:"status"`
}

// IsApproved reports whether the trigger participates in hunts.
func (t SalesTrigger) IsApproved() bool {
	return t.Status == TriggerApproved
}

// EffectiveMode returns the explicit search mode, or sites when the trigger is
// restricted to sites, or web otherwise.
func (t SalesTrigger) EffectiveMode() SearchMode {
	if t.SearchMode != SearchModeUnset {
		return t.SearchMode
	}
	if len(t.LimitToSite) > 0 {
		return SearchModeSites
	}
	return SearchModeWeb
}

// ApprovedTriggers returns a copy of the approved subset, preserving order.
func ApprovedTriggers(triggers []SalesTrigger) []SalesTrigger {
	out := make([]SalesTrigger, 0, len(triggers))
	for _, t := range triggers {
		if t.IsApproved() {
			out = append(out, t)
		}
	}
	return out
}

// Urgency of a claimed event.
type Urgency string

const (
	UrgencyEmergency Urgency = "EMERGENCY"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyMedium    Urgency = "MEDIUM"
	UrgencyLow       Urgency = "LOW"
)

// Urgencies lists every urgency value in descending order.
var Urgencies = []Urgency{UrgencyEmergency, UrgencyHigh, UrgencyMedium, UrgencyLow}

// ClaimedSignal is an event asserted by the search oracle before verification.
type ClaimedSignal struct {
	Headline      string   `json:"headline"`
	Summary       string   `json:"summary"`
	Importance    string   `json:"importance"`
	Products      []string `json:"matchedProducts"`
	DecisionMaker string   `json:"decisionMaker"`
	Urgency       Urgency  `json:"urgency"`
	SourceURL     string   `json:"sourceUrl"`
	SourceTitle   string   `json:"sourceTitle"`
}

// WebChunk is the web citation inside a grounding chunk.
type WebChunk struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundingChunk is a page the oracle actually retrieved while answering.
type GroundingChunk struct {
	Web WebChunk `json:"web"`
}

// SignalConfidence is the weighted breakdown behind a signal's score.
type SignalConfidence struct {
	Freshness      int `json:"freshness"`
	Proximity      int `json:"proximity"`
	IntentStrength int `json:"intentStrength"`
	BuyerMatch     int `json:"buyerMatch"`
	Urgency        int `json:"urgency"`
	Total          int `json:"total"`
}

// SignalStatus is the user-facing lifecycle of a verified signal.
type SignalStatus string

const (
	StatusNew           SignalStatus = "New"
	StatusContacted     SignalStatus = "Contacted"
	StatusMeetingBooked SignalStatus = "Meeting Booked"
	StatusArchived      SignalStatus = "Archived"
)

// Feedback is optional human relevance feedback on a signal.
type Feedback string

const (
	FeedbackRelevant    Feedback = "relevant"
	FeedbackNotRelevant Feedback = "not_relevant"
)

// MarketSignal is a verified signal. SourceURL always equals the URI of a
// grounding chunk returned during the hunt that produced it.
type MarketSignal struct {
	ID            string           `json:"id"`
	Headline      string           `json:"headline"`
	Summary       string           `json:"summary"`
	Importance    string           `json:"importance,omitempty"`
	Products      []string         `json:"matchedProducts"`
	DecisionMaker string           `json:"decisionMaker"`
	Score         int              `json:"score"`
	Urgency       Urgency          `json:"urgency"`
	SourceURL     string           `json:"sourceUrl"`
	SourceTitle   string           `json:"sourceTitle"`
	SourceDomain  string           `json:"sourceDomain"`
	Region        string           `json:"region"`
	Confidence    SignalConfidence `json:"confidence"`
	Status        SignalStatus     `json:"status"`
	Feedback      *Feedback        `json:"feedback,omitempty"`
	DetectedAt    time.Time        `json:"detectedAt"`
}

// SetStatus records a user lifecycle action.
func (s *MarketSignal) SetStatus(status SignalStatus) error {
	switch status {
	case StatusNew, StatusContacted, StatusMeetingBooked, StatusArchived:
		s.Status = status
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}

// SetFeedback records human relevance feedback.
func (s *MarketSignal) SetFeedback(f Feedback) error {
	switch f {
	case FeedbackRelevant, FeedbackNotRelevant:
		s.Feedback = &f
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFeedback, f)
	}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, v := range in {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
