package core

import (
	"fmt"
	"strings"

	"github.com/barysiuk/clipbridge/internal/core/guest"
)

// preferredPrefix is the distribution name favoured when nothing else is known.
const preferredPrefix = "ubuntu"

// ValidateInstanceName checks a user-supplied instance name against the
// identifier grammar and classifies a failure as a ValidationError.
func ValidateInstanceName(name string) error {
	if err := guest.ValidateName(name); err != nil {
		return newError(ValidationError, "select", fmt.Errorf("%w: %v", ErrInvalidIdentifier, err))
	}
	return nil
}

// SelectRequest carries the inputs of instance resolution.
type SelectRequest struct {
	Explicit    string   // --instance value, if any
	Candidates  []string // enumerated instances
	LastUsed    string   // remembered from a previous run
	Interactive bool
}

// SelectInstance resolves the target instance:
//  1. the explicit name, if it is among the candidates
//  2. the sole candidate
//  3. an interactive choice defaulting to PreferredIndex
//
// Every result is re-validated against the identifier grammar because the
// name is later interpolated into a generated script.
func SelectInstance(req SelectRequest, p Prompter) (string, error) {
	var chosen string

	switch {
	case req.Explicit != "":
		if err := ValidateInstanceName(req.Explicit); err != nil {
			return "", err
		}
		for _, c := range req.Candidates {
			if c == req.Explicit {
				chosen = c
				break
			}
		}
		if chosen == "" {
			return "", newError(DiscoveryError, "select", fmt.Errorf("%w: %q (available: %s)",
				ErrInstanceNotFound, req.Explicit, strings.Join(req.Candidates, ", ")))
		}

	case len(req.Candidates) == 0:
		return "", newError(DiscoveryError, "select", ErrNoInstances)

	case len(req.Candidates) == 1:
		chosen = req.Candidates[0]

	case !req.Interactive || p == nil:
		return "", newError(DiscoveryError, "select", fmt.Errorf("%w: %s", ErrAmbiguous, strings.Join(req.Candidates, ", ")))

	default:
		idx, err := p.Select("Which WSL distribution should receive the bridge?",
			req.Candidates, PreferredIndex(req.Candidates, req.LastUsed))
		if err != nil {
			return "", err
		}
		if idx < 0 || idx >= len(req.Candidates) {
			return "", newError(DiscoveryError, "select", fmt.Errorf("selection %d out of range", idx))
		}
		chosen = req.Candidates[idx]
	}

	if err := guest.ValidateName(chosen); err != nil {
		return "", newError(ValidationError, "select", fmt.Errorf("%w: %v", ErrInvalidIdentifier, err))
	}
	return chosen, nil
}

// PreferredIndex returns the default menu entry: the last-used instance,
// then the first Ubuntu-like name, then the first entry.
func PreferredIndex(candidates []string, lastUsed string) int {
	if lastUsed != "" {
		for i, c := range candidates {
			if c == lastUsed {
				return i
			}
		}
	}
	for i, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), preferredPrefix) {
			return i
		}
	}
	return 0
}
