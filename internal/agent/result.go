package agent

import "fmt"

// Outcome classifies a reconciliation step.
type Outcome int

const (
	// OutcomeContinue means no external action was taken.
	OutcomeContinue Outcome = iota
	// OutcomeAction means exactly one corrective action was taken.
	OutcomeAction
	// OutcomeFailed means the step was cut short by an error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeAction:
		return "action"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Action names a corrective action on the external hierarchy.
type Action string

const (
	ActionCreate          Action = "create"
	ActionAcceptInvite    Action = "accept-invite"
	ActionInvite          Action = "invite"
	ActionHandOffRoot     Action = "hand-off-root"
	ActionClaimSubLeader  Action = "claim-sub-leader"
	ActionDemoteSubLeader Action = "demote-sub-leader"
	ActionLeave           Action = "leave"
)

// Reasons reported with OutcomeContinue.
const (
	ReasonAwaitingInvite   = "awaiting-invite"
	ReasonJoinedExternally = "joined-externally"
	ReasonAlone            = "alone"
	ReasonNoLeader         = "no-leader"
	ReasonNotLeader        = "not-leader"
	ReasonAwaitingRoot     = "awaiting-root"
	ReasonSplit            = "split"
	ReasonConverged        = "converged"
)

// StepResult is the value one reconciliation step returns instead of
// unwinding. At most one action is taken per step.
type StepResult struct {
	Outcome Outcome
	Action  Action
	Target  string
	Reason  string
	Err     error
}

// Continue reports a step that took no action.
func Continue(reason string) StepResult {
	return StepResult{Outcome: OutcomeContinue, Reason: reason}
}

// ActionTaken reports a step that performed action on target.
func ActionTaken(action Action, target string) StepResult {
	return StepResult{Outcome: OutcomeAction, Action: action, Target: target}
}

// Failed reports a step that stopped at reason because of err.
func Failed(reason string, err error) StepResult {
	return StepResult{Outcome: OutcomeFailed, Reason: reason, Err: err}
}

func (r StepResult) String() string {
	switch r.Outcome {
	case OutcomeAction:
		if r.Target != "" {
			return fmt.Sprintf("action %s %s", r.Action, r.Target)
		}
		return "action " + string(r.Action)
	case OutcomeFailed:
		return fmt.Sprintf("failed %s: %v", r.Reason, r.Err)
	default:
		return "continue " + r.Reason
	}
}
