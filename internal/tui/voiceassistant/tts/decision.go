// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     tts
// Description: Decision table for remote synthesis outcomes
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package tts

import (
	"context"
	"errors"
	"net/http"
	"strings"

	vxerror "github.com/msto63/vortex/pkg/core/error"
)

// Action is what the controller does after a remote attempt
type Action int

const (
	// ActionPlayRemote plays the returned audio
	ActionPlayRemote Action = iota

	// ActionFallbackNotConfigured falls back silently: no remote backend
	ActionFallbackNotConfigured

	// ActionFallbackFailure falls back after logging RemoteTTSFailure
	ActionFallbackFailure

	// ActionAbandon stops without fallback because the request was superseded
	ActionAbandon
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionPlayRemote:
		return "play_remote"
	case ActionFallbackNotConfigured:
		return "fallback_not_configured"
	case ActionFallbackFailure:
		return "fallback_failure"
	case ActionAbandon:
		return "abandon"
	default:
		return "unknown"
	}
}

// Guard names the rule that produced a decision
type Guard string

const (
	GuardNone        Guard = ""
	GuardCancelled   Guard = "cancelled"
	GuardNetwork     Guard = "network"
	GuardStatus      Guard = "status"
	GuardContentType Guard = "content-type"
	GuardPayload     Guard = "payload"
)

// StatusNotConfigured is the distinguished "no remote backend" status
const StatusNotConfigured = http.StatusAccepted

// Decision is one row of the remote outcome table
type Decision struct {
	Action Action
	Guard  Guard

	// Err is set for ActionFallbackFailure and carries REMOTE_TTS_FAILURE
	Err *vxerror.Error
}

// DecideRemote maps a remote synthesis outcome to an action. Rows are
// evaluated top to bottom:
//
//	ctx cancelled                  -> abandon
//	transport error                -> failure (network)
//	202                            -> not configured
//	non-200                        -> failure (status)
//	200, non-audio content type    -> failure (content-type)
//	200, audio, empty body         -> failure (payload)
//	200, audio, body               -> play remote
func DecideRemote(ctx context.Context, res *RemoteResult, err error) Decision {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return Decision{Action: ActionAbandon, Guard: GuardCancelled}
	}

	if err != nil {
		return failure(GuardNetwork, vxerror.Wrap(err, "remote synthesis request failed"))
	}
	if res == nil {
		return failure(GuardNetwork, vxerror.New("remote synthesis returned no response"))
	}

	switch {
	case res.StatusCode == StatusNotConfigured:
		return Decision{Action: ActionFallbackNotConfigured, Guard: GuardStatus}
	case res.StatusCode != http.StatusOK:
		e := vxerror.Newf(vxerror.CodeRemoteTTSFailure, "remote synthesis returned status %d", res.StatusCode)
		if res.Message != "" {
			e = e.WithDetail("message", res.Message)
		}
		return failure(GuardStatus, e.WithDetail("status", res.StatusCode))
	case !isAudioContentType(res.ContentType):
		return failure(GuardContentType, vxerror.New("remote synthesis returned non-audio content").
			WithDetail("content_type", res.ContentType))
	case len(res.Body) == 0:
		return failure(GuardPayload, vxerror.New("remote synthesis returned an empty payload"))
	}

	return Decision{Action: ActionPlayRemote}
}

func failure(guard Guard, err *vxerror.Error) Decision {
	return Decision{
		Action: ActionFallbackFailure,
		Guard:  guard,
		Err: err.WithCode(vxerror.CodeRemoteTTSFailure).
			WithOperation("speak").
			WithDetail("guard", string(guard)),
	}
}

// isAudioContentType accepts the WAV and MP3 payloads the player decodes
func isAudioContentType(contentType string) bool {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch mt {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave",
		"audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg-3":
		return true
	default:
		return false
	}
}
