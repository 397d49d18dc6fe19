// internal/scanner/callback.go
package scanner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
)

// ErrBadCallback возникает при разборе неизвестного или поврежденного payload
var ErrBadCallback = errors.New("malformed callback payload")

const callbackSep = ":"

type Action string

const (
	ActionScan  Action = "scan"
	ActionToken Action = "token"
)

type View string

const (
	ViewSummary View = "summary"
	ViewDetails View = "details"
)

// Callback is a pagination or view-toggle intent from the dispatcher.
//
//	scan:<session>:<index>
//	token:<mint>:<summary|details>:<session>:<index>
type Callback struct {
	Action    Action
	SessionID string
	Index     int
	Mint      string
	View      View
}

// Encode renders the callback payload.
func (c Callback) Encode() string {
	idx := strconv.Itoa(c.Index)
	if c.Action == ActionToken {
		return strings.Join([]string{string(ActionToken), c.Mint, string(c.View), c.SessionID, idx}, callbackSep)
	}
	return strings.Join([]string{string(ActionScan), c.SessionID, idx}, callbackSep)
}

// ParseCallback decodes a payload produced by Encode.
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, callbackSep)
	switch {
	case len(parts) == 3 && parts[0] == string(ActionScan):
		idx, err := strconv.Atoi(parts[2])
		if err != nil || parts[1] == "" {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
		}
		return Callback{Action: ActionScan, SessionID: parts[1], Index: idx}, nil

	case len(parts) == 5 && parts[0] == string(ActionToken):
		view := View(parts[2])
		if view != ViewSummary && view != ViewDetails {
			return Callback{}, fmt.Errorf("%w: unknown view %q", ErrBadCallback, parts[2])
		}
		if _, err := domain.ParseMint(parts[1]); err != nil {
			return Callback{}, fmt.Errorf("%w: %v", ErrBadCallback, err)
		}
		idx, err := strconv.Atoi(parts[4])
		if err != nil || parts[3] == "" {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
		}
		return Callback{Action: ActionToken, Mint: parts[1], View: view, SessionID: parts[3], Index: idx}, nil
	}
	return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
}
