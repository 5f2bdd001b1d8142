// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimizer

import "time"

// ReturnCode is the terminal classification of a completed optimize() run,
// spec.md §4.7's {Converged, MaxIterations, Failure, UserTerminated} set.
type ReturnCode int

const (
	Converged ReturnCode = iota
	MaxIterations
	Failure
	UserTerminated
)

func (c ReturnCode) String() string {
	switch c {
	case Converged:
		return "Converged"
	case MaxIterations:
		return "MaxIterations"
	case Failure:
		return "Failure"
	case UserTerminated:
		return "UserTerminated"
	default:
		return "Unknown"
	}
}

// Status is optimize()'s always-returned result (spec.md §7: "optimize
// always returns a Status; it never leaves the DVs in a mid-update
// state").
type Status struct {
	Code           ReturnCode
	FinalCost      float64
	Iterations     int
	AcceptedSteps  int
	RejectedSteps  int
	SolverTime     time.Duration
	FailureMessage string // populated when Code == Failure
}

// OK reports whether the run converged.
func (s Status) OK() bool { return s.Code == Converged }
