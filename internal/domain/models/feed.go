package models

import "time"

// FeedMode is the ingestion manager state.
type FeedMode string

const (
	FeedPrimary     FeedMode = "PRIMARY"
	FeedFallback    FeedMode = "FALLBACK"
	FeedReconciling FeedMode = "RECONCILING"
)

// FeedStatus is a point-in-time view of one stream's ingestion.
type FeedStatus struct {
	Stream         StreamKey `json:"stream"`
	Mode           FeedMode  `json:"mode"`
	Down           bool      `json:"down"`
	LastOpenTime   time.Time `json:"last_open_time"`
	Attempts       int       `json:"attempts"`
	Contradictions int       `json:"contradictions"`
	Emitted        int64     `json:"emitted"`
}

// FeedEventKind marks a reported feed transition.
type FeedEventKind string

const (
	FeedEventDown       FeedEventKind = "FEED_DOWN"
	FeedEventUp         FeedEventKind = "FEED_UP"
	FeedEventModeChange FeedEventKind = "MODE_CHANGE"
)

// FeedEvent is emitted once per transition, never per retry.
type FeedEvent struct {
	Stream StreamKey
	Kind   FeedEventKind
	From   FeedMode
	To     FeedMode
	At     time.Time
	Err    error
}
